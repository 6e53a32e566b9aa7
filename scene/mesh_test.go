package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

// windingNormal returns the geometric normal of every triangle.
func windingNormals(m *Mesh) []mgl32.Vec3 {
	var out []mgl32.Vec3
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a := m.Vertices[m.Indices[i]].Position
		b := m.Vertices[m.Indices[i+1]].Position
		c := m.Vertices[m.Indices[i+2]].Position
		out = append(out, b.Sub(a).Cross(c.Sub(a)))
	}
	return out
}

func TestPrimitivesWindCounterClockwise(t *testing.T) {
	for _, m := range []*Mesh{CreateCube(2), CreateSphere(1, 16, 8), CreatePlane(4, 4, 2)} {
		center := m.Bounds.Center()
		for i, n := range windingNormals(m) {
			if n.LenSqr() < 1e-10 {
				continue // pole triangles of the sphere collapse
			}
			p := m.Vertices[m.Indices[i*3]].Position
			out := p.Sub(center)
			if m.Name == "Plane" {
				out = mgl32.Vec3{0, 1, 0}
			}
			assert.Greater(t, n.Dot(out), float32(0), "%s triangle %d faces inward", m.Name, i)
		}
	}
}

func TestCubeCounts(t *testing.T) {
	m := CreateCube(2)
	assert.Len(t, m.Vertices, 24)
	assert.Equal(t, 36, m.IndexCount())
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, m.Bounds.Min)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, m.Bounds.Max)
}

func TestTangentFrameOrthonormal(t *testing.T) {
	for _, m := range []*Mesh{CreateCube(1), CreateSphere(1, 12, 6), CreatePlane(2, 2, 1)} {
		for _, v := range m.Vertices {
			assert.InDelta(t, 1, v.Tangent.Len(), 1e-4)
			assert.InDelta(t, 1, v.Bitangent.Len(), 1e-4)
			assert.InDelta(t, 0, v.Tangent.Dot(v.Normal), 1e-4)
		}
	}
}

func TestPlaneTangentAlongU(t *testing.T) {
	m := CreatePlane(2, 2, 1)
	for _, v := range m.Vertices {
		assert.InDelta(t, 1, v.Tangent.X(), 1e-5)
		assert.InDelta(t, 1, v.Bitangent.Z(), 1e-5)
	}
}

func TestMeshTransform(t *testing.T) {
	m := CreateCube(2)
	m.Transform(mgl32.Translate3D(0, 5, 0).Mul4(mgl32.Scale3D(2, 1, 1)))
	assert.InDelta(t, -2, m.Bounds.Min.X(), 1e-5)
	assert.InDelta(t, 4, m.Bounds.Min.Y(), 1e-5)
	assert.InDelta(t, 6, m.Bounds.Max.Y(), 1e-5)
	for _, v := range m.Vertices {
		assert.InDelta(t, 1, v.Normal.Len(), 1e-5)
	}
}

func TestOrbitCamera(t *testing.T) {
	c := NewOrbitCamera(mgl32.Vec3{}, 10, mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	assert.InDelta(t, 10, c.Position.Len(), 1e-4)

	c.Zoom(-20)
	assert.InDelta(t, 0.5, c.Distance, 1e-6)

	c.Orbit(0, 10)
	assert.InDelta(t, 1.5, c.Pitch, 1e-6)

	view := c.ViewMatrix()
	target := view.Mul4x1(c.Target.Vec4(1))
	assert.InDelta(t, 0, target.X(), 1e-4)
	assert.InDelta(t, 0, target.Y(), 1e-4)
	assert.Less(t, target.Z(), float32(0), "target in front of the camera")
}
