package cluster

import (
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid() (Grid, mgl32.Mat4) {
	g := NewGrid(Params{Width: 1280, Height: 720, TileSize: 64, Slices: 16, ZNear: 0.1, ZFar: 200})
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1280.0/720.0, 0.1, 200)
	return g, proj
}

func TestNewGridRoundsTilesUp(t *testing.T) {
	g := NewGrid(Params{Width: 1920, Height: 1080, TileSize: 64, Slices: 24, ZNear: 0.1, ZFar: 1000})
	assert.Equal(t, 30, g.TilesX)
	assert.Equal(t, 17, g.TilesY)
	assert.Equal(t, 30*17*24, g.Count())
}

func TestIndexCoordRoundTrip(t *testing.T) {
	g, _ := testGrid()
	for i := 0; i < g.Count(); i += 37 {
		x, y, z := g.Coord(i)
		require.Equal(t, i, g.Index(x, y, z))
	}
}

func TestSliceDepthEndpoints(t *testing.T) {
	g, _ := testGrid()
	assert.InDelta(t, 0.1, g.SliceDepth(0), 1e-6)
	assert.InDelta(t, 200, g.SliceDepth(g.Slices), 1e-3)
	for k := 0; k < g.Slices; k++ {
		assert.Less(t, g.SliceDepth(k), g.SliceDepth(k+1))
	}
}

func TestSliceMatchesBoundaries(t *testing.T) {
	g, _ := testGrid()
	for k := 0; k < g.Slices; k++ {
		mid := (g.SliceDepth(k) + g.SliceDepth(k+1)) / 2
		assert.Equal(t, k, g.Slice(mid), "slice %d", k)
	}
	assert.Equal(t, 0, g.Slice(0.01))
	assert.Equal(t, g.Slices-1, g.Slice(1e6))
}

func TestBuildAABBsCoverFrustum(t *testing.T) {
	g, proj := testGrid()
	cells := g.BuildAABBs(proj.Inv())
	require.Len(t, cells, g.Count())

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		// random point inside the view frustum
		ndc := mgl32.Vec2{rng.Float32()*2 - 1, rng.Float32()*2 - 1}
		depth := g.ZNear + rng.Float32()*(g.ZFar-g.ZNear)*0.99
		near := proj.Inv().Mul4x1(mgl32.Vec4{ndc.X(), ndc.Y(), -1, 1})
		dir := near.Vec3().Mul(1 / near.W())
		p := dir.Mul(depth / -dir.Z())

		clip := proj.Mul4x1(p.Vec4(1))
		fx := (clip.X()/clip.W()*0.5 + 0.5) * float32(g.Width)
		fy := (clip.Y()/clip.W()*0.5 + 0.5) * float32(g.Height)

		c := g.CellAt(fx, fy, p.Z())
		assert.True(t, cells[c].Contains(p, 1e-3*depth), "point %v not in cell %d %+v", p, c, cells[c])
	}
}

func TestAABBsAreOrdered(t *testing.T) {
	g, proj := testGrid()
	for i, c := range g.BuildAABBs(proj.Inv()) {
		for a := 0; a < 3; a++ {
			require.LessOrEqual(t, c.Min[a], c.Max[a], "cell %d axis %d", i, a)
		}
		require.Less(t, c.Max.Z(), float32(0), "cell %d must be in front of the eye", i)
	}
}

func TestClipPlanes(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 500)
	near, far, ok := ClipPlanes(proj)
	require.True(t, ok)
	assert.InDelta(t, 0.1, near, 1e-5)
	assert.InDelta(t, 500, far, 1)

	jittered := mgl32.Translate3D(0.001, -0.002, 0).Mul4(proj)
	jn, jf, ok := ClipPlanes(jittered)
	require.True(t, ok)
	assert.Equal(t, near, jn)
	assert.Equal(t, far, jf)

	_, _, ok = ClipPlanes(mgl32.Ortho(-1, 1, -1, 1, 0.1, 10))
	assert.False(t, ok)
	_, _, ok = ClipPlanes(mgl32.Ident4())
	assert.False(t, ok)
}

// A camera reaching past the configured far plane still gets distinct
// slices out to its own far plane once the grid takes the projection's.
func TestGridFollowsProjectionPlanes(t *testing.T) {
	g := NewGrid(Params{Width: 1280, Height: 720, TileSize: 64, Slices: 16, ZNear: 0.1, ZFar: 100})
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1280.0/720.0, 0.1, 800)

	assert.Equal(t, g.Slices-1, g.Slice(300))
	assert.Equal(t, g.Slices-1, g.Slice(700))

	near, far, ok := ClipPlanes(proj)
	require.True(t, ok)
	g = g.WithPlanes(near, far)
	assert.Less(t, g.Slice(300), g.Slice(700))
	assert.InDelta(t, 800, g.SliceDepth(g.Slices), 1)

	cells := g.BuildAABBs(proj.Inv())
	last := cells[g.Index(g.TilesX/2, g.TilesY/2, g.Slices-1)]
	assert.InDelta(t, -800, last.Min[2], 2)
}
