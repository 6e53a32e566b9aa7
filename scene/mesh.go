package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/core"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extend grows the box to contain p.
func (b AABB) Extend(p mgl32.Vec3) AABB {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
	return b
}

// Mesh holds CPU-side vertex/index data.
// GPU upload is managed by the renderer backend.
type Mesh struct {
	Name     string
	Vertices []core.Vertex
	Indices  []uint32
	Bounds   AABB
}

// CreateMeshFromData builds a Mesh and pre-computes its local-space AABB.
func CreateMeshFromData(name string, vertices []core.Vertex, indices []uint32) *Mesh {
	m := &Mesh{
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
	}
	if len(vertices) > 0 {
		m.Bounds = computeBounds(vertices)
	}
	return m
}

func computeBounds(vertices []core.Vertex) AABB {
	b := AABB{Min: vertices[0].Position, Max: vertices[0].Position}
	for i := 1; i < len(vertices); i++ {
		b = b.Extend(vertices[i].Position)
	}
	return b
}

// IndexCount returns the number of indices drawn, falling back to the vertex
// count for non-indexed meshes.
func (m *Mesh) IndexCount() int {
	if len(m.Indices) > 0 {
		return len(m.Indices)
	}
	return len(m.Vertices)
}

// Transform bakes mat into positions and the tangent frame.
func (m *Mesh) Transform(mat mgl32.Mat4) {
	normalMat := mat.Mat3().Inv().Transpose()
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Position = mat.Mul4x1(v.Position.Vec4(1)).Vec3()
		v.Normal = safeNormalize(normalMat.Mul3x1(v.Normal))
		v.Tangent = safeNormalize(mat.Mat3().Mul3x1(v.Tangent))
		v.Bitangent = safeNormalize(mat.Mat3().Mul3x1(v.Bitangent))
	}
	if len(m.Vertices) > 0 {
		m.Bounds = computeBounds(m.Vertices)
	}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.LenSqr() < 1e-12 {
		return v
	}
	return v.Normalize()
}
