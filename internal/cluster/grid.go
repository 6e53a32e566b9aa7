// Package cluster describes the clustered-lighting grid: the view frustum is
// cut into screen tiles and exponential depth slices, each cell bounded by a
// view-space AABB. The GPU builds and fills the grid with compute shaders;
// the functions here perform the same math on the CPU so the layout and the
// binning rules can be checked without a GL context.
package cluster

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Params are the inputs that determine the grid shape.
type Params struct {
	Width, Height int
	TileSize      int
	Slices        int
	ZNear, ZFar   float32
}

// Grid is a tiles-x by tiles-y by slices partition of the view frustum.
// ZNear and ZFar must match the projection the grid is built from, or
// fragments beyond ZFar all land in the last slice; see ClipPlanes.
type Grid struct {
	Params
	TilesX, TilesY int
}

func NewGrid(p Params) Grid {
	return Grid{
		Params: p,
		TilesX: (p.Width + p.TileSize - 1) / p.TileSize,
		TilesY: (p.Height + p.TileSize - 1) / p.TileSize,
	}
}

// ClipPlanes recovers the near and far distances of a GL perspective
// projection. ok is false for orthographic or degenerate matrices. A
// sub-pixel jitter leaves both planes unchanged.
func ClipPlanes(proj mgl32.Mat4) (near, far float32, ok bool) {
	if proj[11] >= 0 || proj[15] != 0 {
		return 0, 0, false
	}
	a, b := proj[10], proj[14]
	if a == 1 || a == -1 {
		return 0, 0, false
	}
	near, far = b/(a-1), b/(a+1)
	return near, far, near > 0 && far > near
}

// WithPlanes returns g sliced between near and far instead.
func (g Grid) WithPlanes(near, far float32) Grid {
	g.ZNear, g.ZFar = near, far
	return g
}

// Count is the total number of cells.
func (g Grid) Count() int {
	return g.TilesX * g.TilesY * g.Slices
}

// Index flattens a cell coordinate, x fastest.
func (g Grid) Index(x, y, z int) int {
	return x + y*g.TilesX + z*g.TilesX*g.TilesY
}

// Coord is the inverse of Index.
func (g Grid) Coord(index int) (x, y, z int) {
	plane := g.TilesX * g.TilesY
	z = index / plane
	rem := index % plane
	return rem % g.TilesX, rem / g.TilesX, z
}

// SliceDepth returns the positive view distance of slice boundary k, for
// k in [0, Slices]. Boundaries are spaced exponentially from near to far.
func (g Grid) SliceDepth(k int) float32 {
	return g.ZNear * math32.Pow(g.ZFar/g.ZNear, float32(k)/float32(g.Slices))
}

// Slice returns the slice containing a positive view distance, clamped to
// the grid.
func (g Grid) Slice(depth float32) int {
	if depth <= g.ZNear {
		return 0
	}
	s := int(math32.Floor(math32.Log(depth/g.ZNear) / math32.Log(g.ZFar/g.ZNear) * float32(g.Slices)))
	return min(max(s, 0), g.Slices-1)
}

// CellAt maps a window-space fragment position and its view-space z
// (negative in front of the camera) to a flattened cell index.
func (g Grid) CellAt(fragX, fragY, viewZ float32) int {
	x := min(max(int(fragX)/g.TileSize, 0), g.TilesX-1)
	y := min(max(int(fragY)/g.TileSize, 0), g.TilesY-1)
	return g.Index(x, y, g.Slice(-viewZ))
}

// AABB is a view-space box with std430 vec4 layout.
type AABB struct {
	Min mgl32.Vec4
	Max mgl32.Vec4
}

// Contains reports whether p lies inside the box, widened by eps.
func (b AABB) Contains(p mgl32.Vec3, eps float32) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i]-eps || p[i] > b.Max[i]+eps {
			return false
		}
	}
	return true
}

// BuildAABBs computes every cell's bounds from the inverse of the
// (unjittered) projection. Mirrors the cluster build compute shader.
func (g Grid) BuildAABBs(invProj mgl32.Mat4) []AABB {
	cells := make([]AABB, g.Count())
	for i := range cells {
		x, y, z := g.Coord(i)
		cells[i] = g.cellAABB(invProj, x, y, z)
	}
	return cells
}

func (g Grid) cellAABB(invProj mgl32.Mat4, x, y, z int) AABB {
	ts := float32(g.TileSize)
	minScreen := mgl32.Vec2{float32(x) * ts, float32(y) * ts}
	maxScreen := mgl32.Vec2{float32(x+1) * ts, float32(y+1) * ts}

	minView := g.screenToView(invProj, minScreen)
	maxView := g.screenToView(invProj, maxScreen)

	near := -g.SliceDepth(z)
	far := -g.SliceDepth(z + 1)

	pts := [4]mgl32.Vec3{
		intersectZPlane(minView, near),
		intersectZPlane(maxView, near),
		intersectZPlane(minView, far),
		intersectZPlane(maxView, far),
	}
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		for i := 0; i < 3; i++ {
			lo[i] = min(lo[i], p[i])
			hi[i] = max(hi[i], p[i])
		}
	}
	return AABB{Min: lo.Vec4(0), Max: hi.Vec4(0)}
}

// screenToView unprojects a window position on the near plane.
func (g Grid) screenToView(invProj mgl32.Mat4, screen mgl32.Vec2) mgl32.Vec3 {
	ndc := mgl32.Vec4{
		screen.X()/float32(g.Width)*2 - 1,
		screen.Y()/float32(g.Height)*2 - 1,
		-1,
		1,
	}
	v := invProj.Mul4x1(ndc)
	return v.Vec3().Mul(1 / v.W())
}

// intersectZPlane follows the ray from the eye through p to the plane z=zDist.
func intersectZPlane(p mgl32.Vec3, zDist float32) mgl32.Vec3 {
	return p.Mul(zDist / p.Z())
}
