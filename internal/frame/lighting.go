package frame

import (
	"pbr-engine/internal/cluster"
	"pbr-engine/internal/config"
)

// LightingInputs is the light data the lighting pass consumes for one frame.
type LightingInputs struct {
	// Directions are uniform-uploaded; never clustered.
	Directions []DirectionLight
	// ShadowedPoints hold a shadow slot and are applied directly.
	ShadowedPoints []PointLight
	// ClusterLights is every point light in std430 form. The binner skips
	// entries whose ShadowIndex is set.
	ClusterLights []cluster.Light
	// Clustered counts point lights resolved through the grid.
	Clustered int

	Ambient bool
	SSAO    bool
	// FlatAmbient is the constant ambient used when Ambient is false.
	FlatAmbient float32
}

// SetFlatAmbient sets the fallback ambient level. Image-based ambient
// replaces it, and a non-positive level disables it.
func (in *LightingInputs) SetFlatAmbient(level float32) {
	in.FlatAmbient = 0
	if !in.Ambient && level > 0 {
		in.FlatAmbient = level
	}
}

// BuildLighting gathers the light lists for the lighting pass. Shadow slots
// must already be assigned. Direction lights beyond MaxDirectionLights are
// dropped.
func BuildLighting(s *Scene, iblReady, ssao bool) LightingInputs {
	in := LightingInputs{Ambient: iblReady, SSAO: ssao}

	dirs := s.DirectionLights()
	in.Directions = dirs[:min(len(dirs), config.MaxDirectionLights)]

	points := s.PointLights()
	in.ClusterLights = make([]cluster.Light, len(points))
	for i, p := range points {
		in.ClusterLights[i] = cluster.Light{
			Position:    p.Position,
			ShadowIndex: int32(p.ShadowIndex),
			Color:       p.Color,
			Radius:      p.Radius,
		}
		if p.ShadowIndex != NoShadow {
			in.ShadowedPoints = append(in.ShadowedPoints, p)
		} else {
			in.Clustered++
		}
	}
	return in
}

// Stats summarises one rendered frame.
type Stats struct {
	Frame             uint64
	Items             int
	PointLights       int
	DirectionLights   int
	ShadowedPoint     int
	ShadowedDirection int
	ClusteredLights   int
	// ClusterOverflow is the number of light indices the binner dropped on
	// the last frame it reported; the buffer grows in response.
	ClusterOverflow int
	// ClusterCellCapped counts lights dropped because a cell was already
	// full; growing the index buffer does not recover them.
	ClusterCellCapped int
	ClusterCapacity   int
}
