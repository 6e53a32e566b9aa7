package cluster

import (
	"github.com/go-gl/mathgl/mgl32"
)

// MaxCellLights is the most lights one cell can list. The binner keeps its
// per-cell list in a fixed local array of this length.
const MaxCellLights = 256

// Light is the std430 record shared with the binner and lighting shaders.
// Position is world space; the shader moves it into view space.
type Light struct {
	Position    mgl32.Vec3
	ShadowIndex int32
	Color       mgl32.Vec3
	Radius      float32
}

// LightGrid is one cell's slice of the flattened index list.
type LightGrid struct {
	Offset uint32
	Count  uint32
}

// Result is the output of one binning pass.
type Result struct {
	Grid    []LightGrid
	Indices []uint32
	// Overflow counts indices dropped because the list was full. A larger
	// buffer recovers them.
	Overflow int
	// CellCapped counts lights dropped because a cell already held
	// MaxCellLights. No buffer size recovers them.
	CellCapped int
}

// SphereIntersectsAABB reports whether a sphere touches the box.
func SphereIntersectsAABB(center mgl32.Vec3, radius float32, box AABB) bool {
	var d2 float32
	for i := 0; i < 3; i++ {
		v := center[i]
		if v < box.Min[i] {
			d := box.Min[i] - v
			d2 += d * d
		} else if v > box.Max[i] {
			d := v - box.Max[i]
			d2 += d * d
		}
	}
	return d2 <= radius*radius
}

// Bin assigns lights to cells. Lights holding a shadow slot are skipped:
// the lighting pass applies them directly. Cells claim ranges from a shared
// cursor in cell order; ranges past capacity are truncated and the dropped
// indices counted in Overflow. A cell lists at most MaxCellLights lights;
// the rest are counted in CellCapped and claim no range. Mirrors the light
// cull compute shader.
func Bin(cells []AABB, lights []Light, view mgl32.Mat4, capacity int) Result {
	res := Result{
		Grid:    make([]LightGrid, len(cells)),
		Indices: make([]uint32, 0, min(capacity, len(cells)*len(lights))),
	}

	viewPos := make([]mgl32.Vec3, len(lights))
	for i, l := range lights {
		viewPos[i] = view.Mul4x1(l.Position.Vec4(1)).Vec3()
	}

	cursor := 0
	visible := make([]uint32, 0, len(lights))
	for c, box := range cells {
		visible = visible[:0]
		for i, l := range lights {
			if l.ShadowIndex >= 0 {
				continue
			}
			if SphereIntersectsAABB(viewPos[i], l.Radius, box) {
				visible = append(visible, uint32(i))
			}
		}

		if len(visible) > MaxCellLights {
			res.CellCapped += len(visible) - MaxCellLights
			visible = visible[:MaxCellLights]
		}

		offset := cursor
		cursor += len(visible)

		stored := min(len(visible), max(capacity-offset, 0))
		res.Overflow += len(visible) - stored
		res.Grid[c] = LightGrid{Offset: uint32(offset), Count: uint32(stored)}
		res.Indices = append(res.Indices, visible[:stored]...)
	}
	return res
}

// Lights returns the light indices binned into cell c.
func (r Result) Lights(c int) []uint32 {
	g := r.Grid[c]
	if g.Count == 0 {
		return nil
	}
	return r.Indices[g.Offset : g.Offset+g.Count]
}

// GrowCapacity returns the smallest power of two that holds required
// entries, never shrinking below capacity.
func GrowCapacity(capacity, required int) int {
	n := max(capacity, 1)
	for n < required {
		n <<= 1
	}
	return n
}
