package opengl

import (
	"github.com/go-gl/gl/v4.3-core/gl"

	"pbr-engine/internal/pass"
)

// target is a framebuffer and the viewport a pass renders into. FBO 0 is
// the default framebuffer.
type target struct {
	FBO    uint32
	Width  int32
	Height int32
}

// tex binds a texture to one of a descriptor's named inputs.
type tex struct {
	name string
	id   uint32
}

// executor applies a pass.Descriptor: framebuffer, viewport, clear, fixed
// function state and texture units. It also owns the empty VAO used by every
// fullscreen triangle.
type executor struct {
	quadVAO uint32
}

func newExecutor() *executor {
	e := &executor{}
	gl.GenVertexArrays(1, &e.quadVAO)
	return e
}

// run sets up d on t, binds textures to their units, calls draw, then
// restores the default state every pass assumes on entry.
func (e *executor) run(d *pass.Descriptor, prog *Program, t target, textures []tex, draw func()) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.FBO)
	gl.Viewport(0, 0, t.Width, t.Height)
	e.applyState(d.State)

	var mask uint32
	if d.Clear.Color {
		c := d.Clear.ColorValue
		gl.ClearColor(c[0], c[1], c[2], c[3])
		mask |= gl.COLOR_BUFFER_BIT
	}
	if d.Clear.Depth {
		gl.DepthMask(true)
		mask |= gl.DEPTH_BUFFER_BIT
	}
	if mask != 0 {
		gl.Clear(mask)
	}
	if !d.State.DepthWrite {
		gl.DepthMask(false)
	}

	if prog != nil {
		prog.Use()
	}
	for _, tx := range textures {
		in, ok := d.Input(tx.name)
		if !ok {
			continue
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(in.Unit))
		gl.BindTexture(textureTarget(in.Kind), tx.id)
	}

	draw()

	e.resetState()
}

// fullscreen draws the gl_VertexID triangle.
func (e *executor) fullscreen() {
	gl.BindVertexArray(e.quadVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
}

func (e *executor) applyState(s pass.State) {
	if s.DepthTest {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	switch s.DepthFunc {
	case pass.DepthLEqual:
		gl.DepthFunc(gl.LEQUAL)
	default:
		gl.DepthFunc(gl.LESS)
	}
	gl.DepthMask(s.DepthWrite)

	switch s.Cull {
	case pass.CullBack:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	case pass.CullFront:
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.FRONT)
	default:
		gl.Disable(gl.CULL_FACE)
	}

	if s.SeamlessCube {
		gl.Enable(gl.TEXTURE_CUBE_MAP_SEAMLESS)
	}
}

func (e *executor) resetState() {
	gl.DepthMask(true)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)
	gl.ActiveTexture(gl.TEXTURE0)
}

func (e *executor) Destroy() {
	if e.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &e.quadVAO)
		e.quadVAO = 0
	}
}

func textureTarget(k pass.TextureKind) uint32 {
	if k == pass.TextureCube {
		return gl.TEXTURE_CUBE_MAP
	}
	return gl.TEXTURE_2D
}
