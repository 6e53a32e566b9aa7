package opengl

import (
	"github.com/go-gl/gl/v4.3-core/gl"

	"pbr-engine/internal/frame"
	"pbr-engine/internal/pass"
)

const taaFragSrc = `
#version 430 core
in  vec2 fragUV;
out vec4 outColor;

uniform sampler2D currentFrame;
uniform sampler2D historyFrame;
uniform sampler2D gVelocity;
uniform float blendRatio;

void main() {
    vec3 current = texture(currentFrame, fragUV).rgb;
    vec2 velocity = texture(gVelocity, fragUV).rg;
    vec2 prevUV = fragUV - velocity;

    if (any(lessThan(prevUV, vec2(0.0))) || any(greaterThan(prevUV, vec2(1.0)))) {
        outColor = vec4(current, 1.0);
        return;
    }

    // Clamp history to the current 3x3 neighbourhood to reject stale samples.
    vec2 texel = 1.0 / vec2(textureSize(currentFrame, 0));
    vec3 lo = current;
    vec3 hi = current;
    for (int x = -1; x <= 1; x++) {
        for (int y = -1; y <= 1; y++) {
            vec3 c = texture(currentFrame, fragUV + vec2(x, y) * texel).rgb;
            lo = min(lo, c);
            hi = max(hi, c);
        }
    }
    vec3 history = clamp(texture(historyFrame, prevUV).rgb, lo, hi);

    outColor = vec4(mix(current, history, blendRatio), 1.0);
}
` + "\x00"

// TAABuffers holds the three HDR color buffers of temporal resolve: the
// jittered frame being lit, the resolved output and last frame's history.
// The current buffer shares the G-buffer depth texture so the skybox can
// depth test.
type TAABuffers struct {
	currentFBO, resolvedFBO, historyFBO uint32
	Current, Resolved, History          uint32

	width, height int32
	prog          *Program
}

func newTAABuffers(width, height int, depthTex uint32) (*TAABuffers, error) {
	prog, err := newProgram("taa", ppVertSrc, taaFragSrc)
	if err != nil {
		return nil, err
	}
	prog.bindSamplers(&pass.TAA)
	t := &TAABuffers{prog: prog}
	if err := t.alloc(width, height, depthTex); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

func (t *TAABuffers) alloc(width, height int, depthTex uint32) error {
	t.width, t.height = int32(width), int32(height)

	targets := []struct {
		fbo, tex *uint32
		depth    uint32
		tag      string
	}{
		{&t.currentFBO, &t.Current, depthTex, "taa current"},
		{&t.resolvedFBO, &t.Resolved, 0, "taa resolved"},
		{&t.historyFBO, &t.History, 0, "taa history"},
	}
	for _, tg := range targets {
		*tg.tex = newTexture2D(gl.RGBA16F, gl.RGBA, gl.FLOAT, t.width, t.height, gl.LINEAR, gl.CLAMP_TO_EDGE)
		gl.GenFramebuffers(1, tg.fbo)
		gl.BindFramebuffer(gl.FRAMEBUFFER, *tg.fbo)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, *tg.tex, 0)
		if tg.depth != 0 {
			gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, tg.depth, 0)
		}
		err := checkFramebuffer(tg.tag)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *TAABuffers) free() {
	deleteFramebuffers(&t.currentFBO, &t.resolvedFBO, &t.historyFBO)
	deleteTextures(&t.Current, &t.Resolved, &t.History)
}

// Resize reallocates the buffers. History is lost; the caller resets its
// frame.TAA so the next resolve seeds.
func (t *TAABuffers) Resize(width, height int, depthTex uint32) error {
	t.free()
	return t.alloc(width, height, depthTex)
}

// currentTarget is where lighting and the skybox render.
func (t *TAABuffers) currentTarget() target { return target{t.currentFBO, t.width, t.height} }

// Resolve writes Resolved from Current and History, then copies Resolved
// into History for the next frame. On a seed frame Current is copied
// through untouched.
func (t *TAABuffers) Resolve(exec *executor, state *frame.TAA, velocity uint32) {
	if state.Mode() == frame.ResolveSeed {
		t.blit(t.currentFBO, t.resolvedFBO)
	} else {
		exec.run(&pass.TAA, t.prog, target{t.resolvedFBO, t.width, t.height}, []tex{
			{pass.InCurrent, t.Current},
			{pass.InHistory, t.History},
			{pass.InGVelocity, velocity},
		}, func() {
			t.prog.SetFloat("blendRatio", state.BlendRatio)
			exec.fullscreen()
		})
	}
	t.blit(t.resolvedFBO, t.historyFBO)
	state.Resolved()
}

func (t *TAABuffers) blit(src, dst uint32) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, src)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, dst)
	gl.BlitFramebuffer(0, 0, t.width, t.height, 0, 0, t.width, t.height, gl.COLOR_BUFFER_BIT, gl.NEAREST)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (t *TAABuffers) Destroy() {
	t.free()
	t.prog.Destroy()
}
