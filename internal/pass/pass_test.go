package pass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbr-engine/internal/config"
)

func TestDescriptorsValid(t *testing.T) {
	for _, d := range All() {
		assert.NoError(t, d.Validate(), d.Name)
	}
}

func TestValidateCatchesSharedUnit(t *testing.T) {
	d := Descriptor{Name: "bad", Inputs: []Input{{"a", 0, Texture2D}, {"b", 0, Texture2D}, {"c", MaxTextureUnits, Texture2D}}}
	assert.Error(t, d.Validate())
}

func TestGBufferMaterialUnits(t *testing.T) {
	want := []string{InAlbedo, InNormal, InMetallic, InRoughness, InAO}
	for unit, name := range want {
		assert.Equal(t, unit, GBuffer.Unit(name))
	}
}

func TestLightingShadowRanges(t *testing.T) {
	for i := 0; i < config.MaxPointShadowSlots; i++ {
		in, ok := Lighting.Input(PointShadowInput(i))
		require.True(t, ok)
		assert.Equal(t, UnitPointShadowBase+i, in.Unit)
		assert.Equal(t, TextureCube, in.Kind)
	}
	for i := 0; i < config.MaxDirectionShadowSlots; i++ {
		in, ok := Lighting.Input(DirectionShadowInput(i))
		require.True(t, ok)
		assert.Equal(t, UnitDirectionShadowBase+i, in.Unit)
		assert.Equal(t, Texture2D, in.Kind)
	}
	assert.Equal(t, "pointShadowMaps[2]", PointShadowInput(2))
}

func TestLightingIBLUnits(t *testing.T) {
	assert.Equal(t, 3, Lighting.Unit(InIrradiance))
	assert.Equal(t, 4, Lighting.Unit(InPrefilter))
	assert.Equal(t, 5, Lighting.Unit(InBRDF))
	assert.Equal(t, 6, Lighting.Unit(InSSAO))
}

func TestUnitPanicsOnUnknownInput(t *testing.T) {
	assert.Panics(t, func() { GBuffer.Unit("nope") })
}

func TestGBufferLayout(t *testing.T) {
	require.Len(t, GBufferLayout, 6)
	names := map[string]bool{}
	for _, ts := range GBufferLayout {
		assert.NotEmpty(t, ts.Name)
		names[ts.Name] = true
	}
	assert.Len(t, names, 6)
	assert.Equal(t, FormatRG16F, GBufferLayout[GVelocity].Format)
}
