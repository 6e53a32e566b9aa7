package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	// unlit pixels stay black unless a flat ambient is asked for
	assert.Zero(t, Default().Ambient)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
width = 1280
height = 720

[shadow]
max_point = 2

[taa]
blend_ratio = 0.8
`))
	require.NoError(t, err)

	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, 2, cfg.Shadow.MaxPoint)
	assert.InDelta(t, 0.8, cfg.TAA.BlendRatio, 1e-6)

	// untouched keys keep defaults
	def := Default()
	assert.Equal(t, def.Shadow.MaxDirection, cfg.Shadow.MaxDirection)
	assert.Equal(t, def.IBL, cfg.IBL)
	assert.Equal(t, def.Cluster, cfg.Cluster)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"inverted depth", func(c *Config) { c.ZFar = c.ZNear / 2 }},
		{"too many point slots", func(c *Config) { c.Shadow.MaxPoint = MaxPointShadowSlots + 1 }},
		{"negative direction slots", func(c *Config) { c.Shadow.MaxDirection = -1 }},
		{"blend ratio above one", func(c *Config) { c.TAA.BlendRatio = 1.5 }},
		{"prefilter mips exceed size", func(c *Config) { c.IBL.PrefilterSize = 8; c.IBL.PrefilterMips = 5 }},
		{"zero tile", func(c *Config) { c.Cluster.TileSize = 0 }},
		{"negative ambient", func(c *Config) { c.Ambient = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.SSAO.Enabled = false
	cfg.Shadow.MapSize = 2048

	data, err := cfg.Encode()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "renderer.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestWithRuntime(t *testing.T) {
	cfg := Default().WithRuntime(Runtime{
		Shadows:       false,
		SSAO:          false,
		TAABlendRatio: 2,
		TAAJitter:     -1,
		Exposure:      1.5,
	})
	assert.False(t, cfg.Shadow.Enabled)
	assert.False(t, cfg.SSAO.Enabled)
	assert.Equal(t, float32(1), cfg.TAA.BlendRatio)
	assert.Equal(t, float32(0), cfg.TAA.JitterStrength)
	assert.Equal(t, cfg.Runtime().Exposure, float32(1.5))
}
