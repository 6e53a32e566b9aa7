package opengl

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/internal/pass"
)

// Program is a linked GL program owned by exactly one pass. Destroy deletes
// it; a destroyed Program is inert.
type Program struct {
	ID   uint32
	name string
	locs map[string]int32
}

// newProgram links a vertex + fragment program.
func newProgram(name, vertSrc, fragSrc string) (*Program, error) {
	return linkProgram(name, []shaderStage{
		{vertSrc, gl.VERTEX_SHADER},
		{fragSrc, gl.FRAGMENT_SHADER},
	})
}

// newGeometryProgram links a vertex + geometry + fragment program.
func newGeometryProgram(name, vertSrc, geomSrc, fragSrc string) (*Program, error) {
	return linkProgram(name, []shaderStage{
		{vertSrc, gl.VERTEX_SHADER},
		{geomSrc, gl.GEOMETRY_SHADER},
		{fragSrc, gl.FRAGMENT_SHADER},
	})
}

// newComputeProgram links a single compute shader.
func newComputeProgram(name, src string) (*Program, error) {
	return linkProgram(name, []shaderStage{{src, gl.COMPUTE_SHADER}})
}

type shaderStage struct {
	src  string
	kind uint32
}

func stageName(kind uint32) string {
	switch kind {
	case gl.VERTEX_SHADER:
		return "vertex"
	case gl.GEOMETRY_SHADER:
		return "geometry"
	case gl.FRAGMENT_SHADER:
		return "fragment"
	case gl.COMPUTE_SHADER:
		return "compute"
	}
	return fmt.Sprintf("stage 0x%X", kind)
}

func linkProgram(name string, stages []shaderStage) (*Program, error) {
	shaders := make([]uint32, 0, len(stages))
	defer func() {
		for _, s := range shaders {
			gl.DeleteShader(s)
		}
	}()
	for _, st := range stages {
		s, err := compileShader(st.src, st.kind)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", name, stageName(st.kind), err)
		}
		shaders = append(shaders, s)
	}

	prog := gl.CreateProgram()
	for _, s := range shaders {
		gl.AttachShader(prog, s)
	}
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return nil, fmt.Errorf("%s: link failed: %v", name, log)
	}
	for _, s := range shaders {
		gl.DetachShader(prog, s)
	}
	return &Program{ID: prog, name: name, locs: make(map[string]int32)}, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %v", log)
	}
	return shader, nil
}

func (p *Program) Use() { gl.UseProgram(p.ID) }

// Loc returns the cached uniform location of name (-1 when the uniform is
// absent or optimised out, which GL ignores on upload).
func (p *Program) Loc(name string) int32 {
	if loc, ok := p.locs[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(p.ID, gl.Str(name+"\x00"))
	p.locs[name] = loc
	return loc
}

func (p *Program) SetInt(name string, v int32)     { gl.Uniform1i(p.Loc(name), v) }
func (p *Program) SetUint(name string, v uint32)   { gl.Uniform1ui(p.Loc(name), v) }
func (p *Program) SetFloat(name string, v float32) { gl.Uniform1f(p.Loc(name), v) }
func (p *Program) SetBool(name string, v bool) {
	var i int32
	if v {
		i = 1
	}
	gl.Uniform1i(p.Loc(name), i)
}
func (p *Program) SetVec2(name string, v mgl32.Vec2) { gl.Uniform2f(p.Loc(name), v[0], v[1]) }
func (p *Program) SetVec3(name string, v mgl32.Vec3) { gl.Uniform3f(p.Loc(name), v[0], v[1], v[2]) }
func (p *Program) SetMat4(name string, m mgl32.Mat4) {
	gl.UniformMatrix4fv(p.Loc(name), 1, false, &m[0])
}

// SetVec3Array uploads a vec3 array uniform starting at name[0].
func (p *Program) SetVec3Array(name string, vs []mgl32.Vec3) {
	if len(vs) == 0 {
		return
	}
	gl.Uniform3fv(p.Loc(name+"[0]"), int32(len(vs)), (*float32)(unsafe.Pointer(&vs[0][0])))
}

// bindSamplers points every sampler uniform of d at its fixed unit. Called
// once after linking; the assignment is program state and persists.
func (p *Program) bindSamplers(d *pass.Descriptor) {
	p.Use()
	for _, in := range d.Inputs {
		p.SetInt(in.Name, int32(in.Unit))
	}
}

func (p *Program) Destroy() {
	if p == nil || p.ID == 0 {
		return
	}
	gl.DeleteProgram(p.ID)
	p.ID = 0
}
