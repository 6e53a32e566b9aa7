package cluster

import (
	"math/rand/v2"
	"slices"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStd430Layout(t *testing.T) {
	assert.Equal(t, uintptr(32), unsafe.Sizeof(Light{}))
	assert.Equal(t, uintptr(32), unsafe.Sizeof(AABB{}))
	assert.Equal(t, uintptr(8), unsafe.Sizeof(LightGrid{}))
}

func TestSphereIntersectsAABB(t *testing.T) {
	box := AABB{Min: mgl32.Vec4{-1, -1, -1, 0}, Max: mgl32.Vec4{1, 1, 1, 0}}
	tests := []struct {
		name   string
		center mgl32.Vec3
		radius float32
		want   bool
	}{
		{"inside", mgl32.Vec3{0, 0, 0}, 0.1, true},
		{"touching face", mgl32.Vec3{2, 0, 0}, 1, true},
		{"near face", mgl32.Vec3{2, 0, 0}, 0.99, false},
		{"corner reach", mgl32.Vec3{2, 2, 2}, 1.74, true},
		{"corner miss", mgl32.Vec3{2, 2, 2}, 1.7, false},
		{"zero radius outside", mgl32.Vec3{1.01, 0, 0}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SphereIntersectsAABB(tt.center, tt.radius, box))
		})
	}
}

// Every light is listed in a cell exactly when its sphere meets the cell.
func TestBinMatchesIntersection(t *testing.T) {
	g, proj := testGrid()
	cells := g.BuildAABBs(proj.Inv())
	view := mgl32.LookAtV(mgl32.Vec3{3, 4, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})

	rng := rand.New(rand.NewPCG(7, 11))
	for round := 0; round < 5; round++ {
		lights := make([]Light, 40+rng.IntN(60))
		for i := range lights {
			lights[i] = Light{
				Position:    mgl32.Vec3{rng.Float32()*40 - 20, rng.Float32()*10 - 2, rng.Float32()*40 - 20},
				ShadowIndex: -1,
				Radius:      0.5 + rng.Float32()*8,
			}
		}
		res := Bin(cells, lights, view, 1<<22)
		require.Zero(t, res.Overflow)

		for c, box := range cells {
			got := res.Lights(c)
			for i, l := range lights {
				vp := view.Mul4x1(l.Position.Vec4(1)).Vec3()
				want := SphereIntersectsAABB(vp, l.Radius, box)
				if want != slices.Contains(got, uint32(i)) {
					t.Fatalf("round %d cell %d light %d: want listed=%v", round, c, i, want)
				}
			}
		}
	}
}

func TestBinSkipsShadowedLights(t *testing.T) {
	g, proj := testGrid()
	cells := g.BuildAABBs(proj.Inv())
	lights := []Light{
		{Position: mgl32.Vec3{0, 0, -5}, ShadowIndex: 0, Radius: 50},
		{Position: mgl32.Vec3{0, 0, -5}, ShadowIndex: -1, Radius: 50},
	}
	res := Bin(cells, lights, mgl32.Ident4(), 1<<20)
	for c := range cells {
		assert.NotContains(t, res.Lights(c), uint32(0))
	}
	assert.NotEmpty(t, res.Indices)
}

func TestBinOverflowClamps(t *testing.T) {
	g, proj := testGrid()
	cells := g.BuildAABBs(proj.Inv())
	// one huge light touches every cell
	lights := []Light{{Position: mgl32.Vec3{0, 0, -50}, ShadowIndex: -1, Radius: 1000}}

	full := Bin(cells, lights, mgl32.Ident4(), len(cells))
	require.Zero(t, full.Overflow)

	capacity := len(cells) / 2
	res := Bin(cells, lights, mgl32.Ident4(), capacity)
	assert.Equal(t, len(cells)-capacity, res.Overflow)
	assert.Len(t, res.Indices, capacity)
	for c := range cells {
		g := res.Grid[c]
		assert.LessOrEqual(t, int(g.Offset+g.Count), max(capacity, int(g.Offset)))
	}
	assert.Equal(t, capacity*2, GrowCapacity(capacity, capacity+res.Overflow))
}

// A crowded cell keeps MaxCellLights lights and the rest never count as
// buffer overflow, so capacity does not grow for them.
func TestBinCellLimit(t *testing.T) {
	cells := []AABB{
		{Min: mgl32.Vec4{-1, -1, -1, 0}, Max: mgl32.Vec4{1, 1, 1, 0}},
		{Min: mgl32.Vec4{10, 10, 10, 0}, Max: mgl32.Vec4{11, 11, 11, 0}},
	}
	lights := make([]Light, MaxCellLights+40)
	for i := range lights {
		lights[i] = Light{ShadowIndex: -1, Radius: 0.5}
	}
	lights = append(lights, Light{Position: mgl32.Vec3{10.5, 10.5, 10.5}, ShadowIndex: -1, Radius: 0.5})

	capacity := 1024
	res := Bin(cells, lights, mgl32.Ident4(), capacity)
	assert.Equal(t, 40, res.CellCapped)
	assert.Zero(t, res.Overflow)
	assert.Len(t, res.Lights(0), MaxCellLights)
	assert.Equal(t, []uint32{uint32(len(lights) - 1)}, res.Lights(1))
	assert.Equal(t, LightGrid{Offset: MaxCellLights, Count: 1}, res.Grid[1])

	// the cursor only reached what was stored, so the buffer is not grown
	assert.Equal(t, capacity, GrowCapacity(capacity, len(res.Indices)))
}

func TestGrowCapacity(t *testing.T) {
	assert.Equal(t, 1024, GrowCapacity(1024, 10))
	assert.Equal(t, 2048, GrowCapacity(1024, 1025))
	assert.Equal(t, 8, GrowCapacity(0, 5))
}
