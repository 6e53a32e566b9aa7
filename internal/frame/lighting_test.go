package frame

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbr-engine/internal/cluster"
	"pbr-engine/internal/config"
)

// With no lights, no IBL and no SSAO the lighting pass has nothing to add:
// only the background survives.
func TestBuildLightingNoLights(t *testing.T) {
	s := NewScene()
	require.NoError(t, s.AddRenderItem(item(1, 1)))

	cfg := config.Default().Shadow
	cfg.Enabled = false
	AssignShadowSlots(s.PointLights(), s.DirectionLights(), cfg)

	in := BuildLighting(s, false, false)
	assert.Empty(t, in.Directions)
	assert.Empty(t, in.ShadowedPoints)
	assert.Empty(t, in.ClusterLights)
	assert.Zero(t, in.Clustered)
	assert.False(t, in.Ambient)
	assert.False(t, in.SSAO)
}

func TestBuildLightingSplitsShadowedPoints(t *testing.T) {
	s := NewScene()
	for id := uint64(1); id <= 5; id++ {
		require.NoError(t, s.AddPointLight(PointLight{
			ID:         id,
			Position:   mgl32.Vec3{float32(id), 0, 0},
			Radius:     3,
			CastShadow: id <= 3,
		}))
	}
	AssignShadowSlots(s.PointLights(), s.DirectionLights(), shadowCfg(2, 0))

	in := BuildLighting(s, true, true)
	require.Len(t, in.ShadowedPoints, 2)
	assert.Equal(t, 3, in.Clustered)
	require.Len(t, in.ClusterLights, 5)

	// shadowed lights never enter the cluster lists
	g := cluster.NewGrid(cluster.Params{Width: 256, Height: 256, TileSize: 64, Slices: 8, ZNear: 0.1, ZFar: 50})
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 50)
	view := mgl32.LookAtV(mgl32.Vec3{2, 0, 10}, mgl32.Vec3{2, 0, 0}, mgl32.Vec3{0, 1, 0})
	res := cluster.Bin(g.BuildAABBs(proj.Inv()), in.ClusterLights, view, 1<<16)
	for _, idx := range res.Indices {
		assert.Equal(t, int32(NoShadow), in.ClusterLights[idx].ShadowIndex)
	}
	assert.NotEmpty(t, res.Indices)
}

func TestBuildLightingCapsDirections(t *testing.T) {
	s := NewScene()
	for id := uint64(1); id <= config.MaxDirectionLights+2; id++ {
		require.NoError(t, s.AddDirectionLight(DirectionLight{ID: id, Direction: mgl32.Vec3{0, -1, 0}}))
	}
	in := BuildLighting(s, false, false)
	assert.Len(t, in.Directions, config.MaxDirectionLights)
}

func TestSetFlatAmbient(t *testing.T) {
	s := NewScene()

	in := BuildLighting(s, false, true)
	in.SetFlatAmbient(0.03)
	assert.InDelta(t, 0.03, in.FlatAmbient, 1e-7)

	in.SetFlatAmbient(0)
	assert.Zero(t, in.FlatAmbient)
	in.SetFlatAmbient(-1)
	assert.Zero(t, in.FlatAmbient)

	// image-based ambient takes over
	in = BuildLighting(s, true, true)
	in.SetFlatAmbient(0.03)
	assert.Zero(t, in.FlatAmbient)
}
