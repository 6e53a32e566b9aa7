package opengl

import (
	"github.com/go-gl/gl/v4.3-core/gl"

	"pbr-engine/internal/pass"
)

// ppVertSrc: fullscreen triangle via gl_VertexID (no VBO needed).
const ppVertSrc = `
#version 430 core
out vec2 fragUV;
void main() {
    const vec2 pos[3] = vec2[3](
        vec2(-1.0, -1.0),
        vec2( 3.0, -1.0),
        vec2(-1.0,  3.0)
    );
    gl_Position = vec4(pos[gl_VertexID], 0.0, 1.0);
    fragUV      = pos[gl_VertexID] * 0.5 + 0.5;
}
` + "\x00"

// presentFragSrc: exposure tone mapping and gamma 2.2.
const presentFragSrc = `
#version 430 core
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D sourceMap;
uniform float     exposure;

void main() {
    vec3 hdr = texture(sourceMap, fragUV).rgb;
    vec3 mapped = vec3(1.0) - exp(-hdr * exposure);
    mapped = pow(mapped, vec3(1.0 / 2.2));
    outColor = vec4(mapped, 1.0);
}
` + "\x00"

// Present tone-maps the resolved HDR image to the default framebuffer.
type Present struct {
	prog     *Program
	Exposure float32
}

func newPresent(exposure float32) (*Present, error) {
	prog, err := newProgram("present", ppVertSrc, presentFragSrc)
	if err != nil {
		return nil, err
	}
	prog.bindSamplers(&pass.Present)
	return &Present{prog: prog, Exposure: exposure}, nil
}

// Blit draws src into the window at width x height.
func (p *Present) Blit(exec *executor, src uint32, width, height int) {
	exec.run(&pass.Present, p.prog, target{0, int32(width), int32(height)},
		[]tex{{pass.InSource, src}}, func() {
			p.prog.SetFloat("exposure", p.Exposure)
			exec.fullscreen()
		})
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (p *Present) Destroy() { p.prog.Destroy() }
