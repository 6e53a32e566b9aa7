// Package config holds renderer settings. Values load from TOML; anything
// the file leaves out keeps its default.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Upper bounds baked into the lighting shader's sampler and uniform arrays.
const (
	MaxPointShadowSlots     = 4
	MaxDirectionShadowSlots = 4
	MaxDirectionLights      = 4
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Width    int     `toml:"width"`
	Height   int     `toml:"height"`
	ZNear    float32 `toml:"z_near"`
	ZFar     float32 `toml:"z_far"`
	Exposure float32 `toml:"exposure"`
	// Ambient is a flat ambient radiance applied only while image-based
	// lighting is off. Zero keeps unlit pixels black.
	Ambient float32 `toml:"ambient"`

	Cluster ClusterConfig `toml:"cluster"`
	Shadow  ShadowConfig  `toml:"shadow"`
	SSAO    SSAOConfig    `toml:"ssao"`
	TAA     TAAConfig     `toml:"taa"`
	IBL     IBLConfig     `toml:"ibl"`
}

type ClusterConfig struct {
	TileSize int `toml:"tile_size"`
	Slices   int `toml:"slices"`
	// IndexCapacity is the initial length of the flattened light-index
	// buffer. It grows when the binner reports overflow.
	IndexCapacity int `toml:"index_capacity"`
}

type ShadowConfig struct {
	Enabled      bool `toml:"enabled"`
	MapSize      int  `toml:"map_size"`
	MaxPoint     int  `toml:"max_point"`
	MaxDirection int  `toml:"max_direction"`

	// PointNear and PointFar bound every point-light cube frustum regardless
	// of the light's radius.
	PointNear float32 `toml:"point_near"`
	PointFar  float32 `toml:"point_far"`

	DirHalfExtent float32 `toml:"dir_half_extent"`
	DirDistance   float32 `toml:"dir_distance"`
	DirNear       float32 `toml:"dir_near"`
	DirFar        float32 `toml:"dir_far"`
	Bias          float32 `toml:"bias"`
}

type SSAOConfig struct {
	Enabled    bool    `toml:"enabled"`
	KernelSize int     `toml:"kernel_size"`
	Radius     float32 `toml:"radius"`
	Bias       float32 `toml:"bias"`
}

type TAAConfig struct {
	// BlendRatio is the weight given to the reprojected history.
	BlendRatio     float32 `toml:"blend_ratio"`
	JitterStrength float32 `toml:"jitter_strength"`
}

type IBLConfig struct {
	SkyboxSize     int `toml:"skybox_size"`
	IrradianceSize int `toml:"irradiance_size"`
	PrefilterSize  int `toml:"prefilter_size"`
	PrefilterMips  int `toml:"prefilter_mips"`
	BRDFSize       int `toml:"brdf_size"`
}

func Default() Config {
	return Config{
		Width:    1920,
		Height:   1080,
		ZNear:    0.1,
		ZFar:     1000,
		Exposure: 1,
		Cluster: ClusterConfig{
			TileSize:      64,
			Slices:        24,
			IndexCapacity: 1 << 16,
		},
		Shadow: ShadowConfig{
			Enabled:       true,
			MapSize:       1024,
			MaxPoint:      4,
			MaxDirection:  2,
			PointNear:     0.1,
			PointFar:      25,
			DirHalfExtent: 20,
			DirDistance:   50,
			DirNear:       0.1,
			DirFar:        100,
			Bias:          0.005,
		},
		SSAO: SSAOConfig{
			Enabled:    true,
			KernelSize: 64,
			Radius:     0.5,
			Bias:       0.025,
		},
		TAA: TAAConfig{
			BlendRatio:     0.9,
			JitterStrength: 1,
		},
		IBL: IBLConfig{
			SkyboxSize:     512,
			IrradianceSize: 32,
			PrefilterSize:  128,
			PrefilterMips:  5,
			BRDFSize:       512,
		},
	}
}

// Load reads a TOML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode renders cfg as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c Config) Validate() error {
	check := func(ok bool, format string, args ...any) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}
	return errors.Join(
		check(c.Width > 0 && c.Height > 0, "viewport %dx%d", c.Width, c.Height),
		check(c.ZNear > 0 && c.ZFar > c.ZNear, "depth range [%g, %g]", c.ZNear, c.ZFar),
		check(c.Ambient >= 0, "ambient %g", c.Ambient),
		check(c.Cluster.TileSize > 0, "cluster tile size %d", c.Cluster.TileSize),
		check(c.Cluster.Slices > 0, "cluster slices %d", c.Cluster.Slices),
		check(c.Cluster.IndexCapacity > 0, "cluster index capacity %d", c.Cluster.IndexCapacity),
		check(c.Shadow.MapSize > 0, "shadow map size %d", c.Shadow.MapSize),
		check(c.Shadow.MaxPoint >= 0 && c.Shadow.MaxPoint <= MaxPointShadowSlots,
			"point shadow slots %d (max %d)", c.Shadow.MaxPoint, MaxPointShadowSlots),
		check(c.Shadow.MaxDirection >= 0 && c.Shadow.MaxDirection <= MaxDirectionShadowSlots,
			"direction shadow slots %d (max %d)", c.Shadow.MaxDirection, MaxDirectionShadowSlots),
		check(c.Shadow.PointNear > 0 && c.Shadow.PointFar > c.Shadow.PointNear,
			"point shadow range [%g, %g]", c.Shadow.PointNear, c.Shadow.PointFar),
		check(c.Shadow.DirHalfExtent > 0 && c.Shadow.DirFar > c.Shadow.DirNear,
			"direction shadow frustum"),
		check(c.SSAO.KernelSize > 0 && c.SSAO.KernelSize <= 64, "ssao kernel size %d", c.SSAO.KernelSize),
		check(c.TAA.BlendRatio >= 0 && c.TAA.BlendRatio <= 1, "taa blend ratio %g", c.TAA.BlendRatio),
		check(c.TAA.JitterStrength >= 0, "taa jitter strength %g", c.TAA.JitterStrength),
		check(c.IBL.SkyboxSize > 0 && c.IBL.IrradianceSize > 0 && c.IBL.PrefilterSize > 0 && c.IBL.BRDFSize > 0,
			"ibl sizes"),
		check(c.IBL.PrefilterMips > 0 && c.IBL.PrefilterSize>>(c.IBL.PrefilterMips-1) > 0,
			"prefilter mips %d for size %d", c.IBL.PrefilterMips, c.IBL.PrefilterSize),
	)
}

// Runtime is the subset of settings that can change between frames without
// reallocating GPU objects.
type Runtime struct {
	Shadows       bool
	SSAO          bool
	TAABlendRatio float32
	TAAJitter     float32
	Exposure      float32
}

func (c Config) Runtime() Runtime {
	return Runtime{
		Shadows:       c.Shadow.Enabled,
		SSAO:          c.SSAO.Enabled,
		TAABlendRatio: c.TAA.BlendRatio,
		TAAJitter:     c.TAA.JitterStrength,
		Exposure:      c.Exposure,
	}
}

// WithRuntime returns c with the runtime knobs replaced by r.
func (c Config) WithRuntime(r Runtime) Config {
	c.Shadow.Enabled = r.Shadows
	c.SSAO.Enabled = r.SSAO
	c.TAA.BlendRatio = clamp(r.TAABlendRatio, 0, 1)
	c.TAA.JitterStrength = max(r.TAAJitter, 0)
	c.Exposure = r.Exposure
	return c
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
