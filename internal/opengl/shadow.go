package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/internal/config"
	"pbr-engine/internal/frame"
	"pbr-engine/internal/pass"
	"pbr-engine/internal/resource"
)

// ShadowMap wraps a depth-only framebuffer used for direction light shadows.
type ShadowMap struct {
	FBO      uint32
	DepthTex uint32
	Size     int32
}

// NewShadowMap creates a depth-only FBO of size×size resolution.
// Uses a 32-bit float depth texture with hardware PCF (COMPARE_REF_TO_TEXTURE).
func NewShadowMap(size int) (*ShadowMap, error) {
	sm := &ShadowMap{Size: int32(size)}

	gl.GenTextures(1, &sm.DepthTex)
	gl.BindTexture(gl.TEXTURE_2D, sm.DepthTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH_COMPONENT32F,
		int32(size), int32(size), 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
	// Fragments outside the shadow map are lit (border depth = 1.0)
	border := [4]float32{1, 1, 1, 1}
	gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &border[0])
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)

	gl.GenFramebuffers(1, &sm.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, sm.FBO)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, sm.DepthTex, 0)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)

	err := checkFramebuffer("shadow")
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err != nil {
		sm.Destroy()
		return nil, err
	}
	return sm, nil
}

func (sm *ShadowMap) target() target { return target{sm.FBO, sm.Size, sm.Size} }

func (sm *ShadowMap) Destroy() {
	deleteFramebuffers(&sm.FBO)
	deleteTextures(&sm.DepthTex)
}

// CubeShadowMap is a layered depth cube rendered in one pass by a geometry
// shader. Each texel stores distance-to-light / far.
type CubeShadowMap struct {
	FBO      uint32
	DepthTex uint32
	Size     int32
}

func NewCubeShadowMap(size int) (*CubeShadowMap, error) {
	sm := &CubeShadowMap{Size: int32(size)}

	gl.GenTextures(1, &sm.DepthTex)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, sm.DepthTex)
	for face := uint32(0); face < 6; face++ {
		gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+face, 0, gl.DEPTH_COMPONENT32F,
			int32(size), int32(size), 0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	}
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_CUBE_MAP, gl.TEXTURE_WRAP_R, gl.CLAMP_TO_EDGE)

	gl.GenFramebuffers(1, &sm.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, sm.FBO)
	gl.FramebufferTexture(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, sm.DepthTex, 0)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)

	err := checkFramebuffer("point shadow")
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, 0)
	if err != nil {
		sm.Destroy()
		return nil, err
	}
	return sm, nil
}

func (sm *CubeShadowMap) target() target { return target{sm.FBO, sm.Size, sm.Size} }

func (sm *CubeShadowMap) Destroy() {
	deleteFramebuffers(&sm.FBO)
	deleteTextures(&sm.DepthTex)
}

// ── Shaders ───────────────────────────────────────────────────────────────────

const depthVertSrc = `
#version 430 core
layout(location = 0) in vec3 inPosition;
uniform mat4 lightMVP;
void main() {
    gl_Position = lightMVP * vec4(inPosition, 1.0);
}
` + "\x00"

const depthFragSrc = `
#version 430 core
void main() {}
` + "\x00"

const cubeDepthVertSrc = `
#version 430 core
layout(location = 0) in vec3 inPosition;
uniform mat4 model;
void main() {
    gl_Position = model * vec4(inPosition, 1.0);
}
` + "\x00"

// cubeDepthGeomSrc replicates each triangle into the six cube layers.
const cubeDepthGeomSrc = `
#version 430 core
layout(triangles) in;
layout(triangle_strip, max_vertices = 18) out;

uniform mat4 faceViewProj[6];

out vec4 fragWorldPos;

void main() {
    for (int face = 0; face < 6; face++) {
        gl_Layer = face;
        for (int i = 0; i < 3; i++) {
            fragWorldPos = gl_in[i].gl_Position;
            gl_Position  = faceViewProj[face] * fragWorldPos;
            EmitVertex();
        }
        EndPrimitive();
    }
}
` + "\x00"

const cubeDepthFragSrc = `
#version 430 core
in vec4 fragWorldPos;

uniform vec3  lightPos;
uniform float farPlane;

void main() {
    gl_FragDepth = length(fragWorldPos.xyz - lightPos) / farPlane;
}
` + "\x00"

// ── Pass ──────────────────────────────────────────────────────────────────────

// ShadowPass owns the point and direction shadow-map pools.
type ShadowPass struct {
	cfg config.ShadowConfig

	point []*CubeShadowMap
	dir   []*ShadowMap

	dirProg   *Program
	pointProg *Program
}

func newShadowPass(cfg config.ShadowConfig) (*ShadowPass, error) {
	s := &ShadowPass{cfg: cfg}
	var err error
	if s.dirProg, err = newProgram("direction shadow", depthVertSrc, depthFragSrc); err != nil {
		return nil, err
	}
	if s.pointProg, err = newGeometryProgram("point shadow", cubeDepthVertSrc, cubeDepthGeomSrc, cubeDepthFragSrc); err != nil {
		s.Destroy()
		return nil, err
	}
	for i := 0; i < cfg.MaxPoint; i++ {
		sm, err := NewCubeShadowMap(cfg.MapSize)
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("point shadow %d: %w", i, err)
		}
		s.point = append(s.point, sm)
	}
	for i := 0; i < cfg.MaxDirection; i++ {
		sm, err := NewShadowMap(cfg.MapSize)
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("direction shadow %d: %w", i, err)
		}
		s.dir = append(s.dir, sm)
	}
	return s, nil
}

// shadowCaster is one mesh draw with its model matrix.
type shadowCaster struct {
	mesh  resource.MeshHandle
	model mgl32.Mat4
}

// Render fills the slot of every light that was assigned one. Point lights
// go first, then direction lights.
func (s *ShadowPass) Render(exec *executor, points []frame.PointLight, dirs []frame.DirectionLight, casters []shadowCaster) {
	for _, l := range points {
		if l.ShadowIndex < 0 || l.ShadowIndex >= len(s.point) {
			continue
		}
		sm := s.point[l.ShadowIndex]
		exec.run(&pass.ShadowPoint, s.pointProg, sm.target(), nil, func() {
			p := s.pointProg
			for i, vp := range l.ViewProjs {
				p.SetMat4(fmt.Sprintf("faceViewProj[%d]", i), vp)
			}
			p.SetVec3("lightPos", l.Position)
			p.SetFloat("farPlane", s.cfg.PointFar)
			for _, c := range casters {
				p.SetMat4("model", c.model)
				drawMesh(c.mesh)
			}
		})
	}

	for _, l := range dirs {
		if l.ShadowIndex < 0 || l.ShadowIndex >= len(s.dir) {
			continue
		}
		sm := s.dir[l.ShadowIndex]
		exec.run(&pass.ShadowDirection, s.dirProg, sm.target(), nil, func() {
			for _, c := range casters {
				s.dirProg.SetMat4("lightMVP", l.ViewProj.Mul4(c.model))
				drawMesh(c.mesh)
			}
		})
	}
}

// PointTexture returns the cube depth texture of slot i, or 0.
func (s *ShadowPass) PointTexture(i int) uint32 {
	if i < len(s.point) {
		return s.point[i].DepthTex
	}
	return 0
}

// DirectionTexture returns the depth texture of slot i, or 0.
func (s *ShadowPass) DirectionTexture(i int) uint32 {
	if i < len(s.dir) {
		return s.dir[i].DepthTex
	}
	return 0
}

func (s *ShadowPass) Destroy() {
	s.dirProg.Destroy()
	s.pointProg.Destroy()
	for _, sm := range s.point {
		sm.Destroy()
	}
	for _, sm := range s.dir {
		sm.Destroy()
	}
	s.point, s.dir = nil, nil
}
