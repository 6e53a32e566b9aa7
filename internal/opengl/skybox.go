package opengl

import (
	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/internal/pass"
)

// Skybox draws the environment cube map behind the scene. The vertex shader
// uses the xyww trick (gl_Position.z = gl_Position.w) so every fragment lands
// at NDC depth 1.0 and only passes where the G-buffer kept the clear depth.
type Skybox struct {
	cube *unitCube
	prog *Program
}

// ── Shaders ───────────────────────────────────────────────────────────────────

// skyVertSrc: transforms cube vertices with a view matrix that has its
// translation stripped, then forces depth = 1.0 via the xyww trick.
const skyVertSrc = `
#version 430 core
layout(location = 0) in vec3 inPosition;

uniform mat4 skyVP;

out vec3 fragDir;

void main() {
    fragDir = inPosition;
    vec4 pos = skyVP * vec4(inPosition, 1.0);
    // xyww → after perspective divide: z/w = w/w = 1.0 (far plane)
    gl_Position = pos.xyww;
}
` + "\x00"

const skyFragSrc = `
#version 430 core
in vec3 fragDir;
out vec4 outColor;

uniform samplerCube environmentMap;

void main() {
    outColor = vec4(textureLod(environmentMap, fragDir, 0.0).rgb, 1.0);
}
` + "\x00"

// ── Cube geometry ─────────────────────────────────────────────────────────────

// 36 positions (xyz) for a unit cube. Face culling stays off wherever it is
// drawn, so the inside faces are visible.
var skyboxVerts = []float32{
	// -Z face
	-1, -1, -1, 1, 1, -1, 1, -1, -1,
	1, 1, -1, -1, -1, -1, -1, 1, -1,
	// +Z face
	-1, -1, 1, 1, -1, 1, 1, 1, 1,
	1, 1, 1, -1, 1, 1, -1, -1, 1,
	// -X face
	-1, 1, 1, -1, 1, -1, -1, -1, -1,
	-1, -1, -1, -1, -1, 1, -1, 1, 1,
	// +X face
	1, 1, 1, 1, -1, -1, 1, 1, -1,
	1, -1, -1, 1, 1, 1, 1, -1, 1,
	// -Y face
	-1, -1, -1, 1, -1, -1, 1, -1, 1,
	1, -1, 1, -1, -1, 1, -1, -1, -1,
	// +Y face
	-1, 1, -1, 1, 1, 1, 1, 1, -1,
	1, 1, 1, -1, 1, -1, -1, 1, 1,
}

// unitCube is the position-only cube shared by the skybox and the IBL
// capture passes.
type unitCube struct {
	vao, vbo uint32
}

func newUnitCube() *unitCube {
	c := &unitCube{}
	gl.GenVertexArrays(1, &c.vao)
	gl.GenBuffers(1, &c.vbo)
	gl.BindVertexArray(c.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, c.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(skyboxVerts)*4, gl.Ptr(skyboxVerts), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 12, 0)
	gl.BindVertexArray(0)
	return c
}

func (c *unitCube) draw() {
	gl.BindVertexArray(c.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 36)
	gl.BindVertexArray(0)
}

func (c *unitCube) Destroy() {
	if c.vao != 0 {
		gl.DeleteVertexArrays(1, &c.vao)
		gl.DeleteBuffers(1, &c.vbo)
		c.vao, c.vbo = 0, 0
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

// NewSkybox compiles the sky shader.
func NewSkybox(cube *unitCube) (*Skybox, error) {
	prog, err := newProgram("skybox", skyVertSrc, skyFragSrc)
	if err != nil {
		return nil, err
	}
	prog.bindSamplers(&pass.Skybox)
	return &Skybox{cube: cube, prog: prog}, nil
}

// ── Draw ──────────────────────────────────────────────────────────────────────

// Draw renders env into t, whose depth attachment must hold the scene
// depth. The translation is stripped from view.
func (sb *Skybox) Draw(exec *executor, t target, view, proj mgl32.Mat4, env uint32) {
	skyVP := proj.Mul4(view.Mat3().Mat4())
	exec.run(&pass.Skybox, sb.prog, t, []tex{{pass.InEnvironment, env}}, func() {
		sb.prog.SetMat4("skyVP", skyVP)
		sb.cube.draw()
	})
}

// Destroy frees the program. The cube belongs to the renderer.
func (sb *Skybox) Destroy() {
	sb.prog.Destroy()
}
