package frame

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalton(t *testing.T) {
	tests := []struct {
		index, base int
		want        float32
	}{
		{1, 2, 0.5},
		{2, 2, 0.25},
		{3, 2, 0.75},
		{4, 2, 0.125},
		{1, 3, 1.0 / 3},
		{2, 3, 2.0 / 3},
		{3, 3, 1.0 / 9},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Halton(tt.index, tt.base), 1e-6, "Halton(%d, %d)", tt.index, tt.base)
	}
}

func TestJitterPeriodic(t *testing.T) {
	for f := uint64(0); f < 64; f++ {
		require.Equal(t, JitterAt(f), JitterAt(f+JitterPeriod), "frame %d", f)
	}

	distinct := map[mgl32.Vec2]bool{}
	for f := uint64(0); f < JitterPeriod; f++ {
		j := JitterAt(f)
		assert.GreaterOrEqual(t, j.X(), float32(-0.5))
		assert.Less(t, j.X(), float32(0.5))
		assert.GreaterOrEqual(t, j.Y(), float32(-0.5))
		assert.Less(t, j.Y(), float32(0.5))
		distinct[j] = true
	}
	assert.Len(t, distinct, JitterPeriod)
}

func TestJitterDeterministicAcrossInstances(t *testing.T) {
	a := NewTAA(0.9, 1)
	b := NewTAA(0.9, 1)
	for i := 0; i < 40; i++ {
		require.Equal(t, a.NDCJitter(1920, 1080), b.NDCJitter(1920, 1080))
		a.Advance()
		b.Advance()
	}
}

func TestJitterStrength(t *testing.T) {
	taa := NewTAA(0.9, 0)
	assert.Equal(t, mgl32.Vec2{}, taa.Jitter())

	taa.JitterStrength = 2
	assert.Equal(t, JitterAt(0).Mul(2), taa.Jitter())
}

func TestJitterProjectionShiftsNDC(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	taa := NewTAA(0.9, 1)
	taa.Advance()
	off := taa.NDCJitter(1280, 720)
	jittered := JitterProjection(proj, off)

	for _, p := range []mgl32.Vec3{{0, 0, -1}, {3, -2, -20}, {-1, 1, -80}} {
		a := proj.Mul4x1(p.Vec4(1))
		b := jittered.Mul4x1(p.Vec4(1))
		assert.InDelta(t, a.X()/a.W()+off.X(), b.X()/b.W(), 1e-5)
		assert.InDelta(t, a.Y()/a.W()+off.Y(), b.Y()/b.W(), 1e-5)
		assert.InDelta(t, a.Z()/a.W(), b.Z()/b.W(), 1e-6)
	}
}

func TestTAAModes(t *testing.T) {
	taa := NewTAA(0.9, 1)
	assert.Equal(t, ResolveSeed, taa.Mode())

	taa.Resolved()
	taa.Advance()
	assert.Equal(t, ResolveBlend, taa.Mode())
	assert.Equal(t, uint64(1), taa.Frame())

	taa.Reset()
	assert.Equal(t, ResolveSeed, taa.Mode())
	assert.Equal(t, uint64(1), taa.Frame())
}
