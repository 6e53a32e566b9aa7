// Package pass declares every render pass's fixed bindings: which texture
// unit each sampler reads, which SSBO binding point each buffer uses, and
// the G-buffer target layout. Shaders and the GL executor both read these
// tables, so the numbers appear nowhere else.
package pass

import (
	"errors"
	"fmt"

	"pbr-engine/internal/config"
)

// MaxTextureUnits is the fragment-stage unit count GL 4.3 guarantees.
const MaxTextureUnits = 16

type TextureKind int

const (
	Texture2D TextureKind = iota
	TextureCube
)

// Input is a sampler uniform bound to a fixed texture unit.
type Input struct {
	Name string
	Unit int
	Kind TextureKind
}

type CullMode int

const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

type DepthFunc int

const (
	DepthLess DepthFunc = iota
	DepthLEqual
)

// State is the fixed-function state a pass runs with.
type State struct {
	DepthTest  bool
	DepthWrite bool
	DepthFunc  DepthFunc
	Cull       CullMode
	// SeamlessCube enables filtering across cube faces.
	SeamlessCube bool
}

// Clear selects which attachments are cleared when the pass starts.
type Clear struct {
	Color      bool
	Depth      bool
	ColorValue [4]float32
}

// Descriptor is everything the executor needs to set up a pass.
type Descriptor struct {
	Name   string
	Inputs []Input
	State  State
	Clear  Clear
}

// Input returns the binding named name.
func (d *Descriptor) Input(name string) (Input, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}

// Unit returns the texture unit of the named input and panics if the pass
// has no such input; callers use constant names.
func (d *Descriptor) Unit(name string) int {
	in, ok := d.Input(name)
	if !ok {
		panic(fmt.Sprintf("pass %s: no input %q", d.Name, name))
	}
	return in.Unit
}

// Validate checks that units are in range and used once.
func (d *Descriptor) Validate() error {
	var errs []error
	units := map[int]string{}
	names := map[string]bool{}
	for _, in := range d.Inputs {
		if in.Unit < 0 || in.Unit >= MaxTextureUnits {
			errs = append(errs, fmt.Errorf("pass %s: %s unit %d out of range", d.Name, in.Name, in.Unit))
		}
		if prev, ok := units[in.Unit]; ok {
			errs = append(errs, fmt.Errorf("pass %s: unit %d shared by %s and %s", d.Name, in.Unit, prev, in.Name))
		}
		if names[in.Name] {
			errs = append(errs, fmt.Errorf("pass %s: input %s declared twice", d.Name, in.Name))
		}
		units[in.Unit] = in.Name
		names[in.Name] = true
	}
	return errors.Join(errs...)
}

// SSBO binding points shared by the cluster compute shaders and the
// lighting pass.
const (
	BindingClusterAABBs = 0
	BindingLights       = 1
	BindingLightGrid    = 2
	BindingLightIndices = 3
	BindingCounters     = 4
)

// Fixed unit bases for the lighting pass shadow arrays.
const (
	UnitPointShadowBase     = 8
	UnitDirectionShadowBase = UnitPointShadowBase + config.MaxPointShadowSlots
)

// Input names. Array elements are spelled the way glGetUniformLocation
// expects them.
const (
	InAlbedo    = "albedoMap"
	InNormal    = "normalMap"
	InMetallic  = "metallicMap"
	InRoughness = "roughnessMap"
	InAO        = "aoMap"

	InGPositionAO       = "gPositionAO"
	InGAlbedoRoughness  = "gAlbedoRoughness"
	InGNormalMetallic   = "gNormalMetallic"
	InGViewPosition     = "gViewPosition"
	InGViewNormal       = "gViewNormal"
	InGVelocity         = "gVelocity"
	InIrradiance        = "irradianceMap"
	InPrefilter         = "prefilterMap"
	InBRDF              = "brdfLUT"
	InSSAO              = "ssaoMap"
	InNoise             = "noiseMap"
	InEnvironment       = "environmentMap"
	InEquirect          = "equirectMap"
	InCurrent           = "currentFrame"
	InHistory           = "historyFrame"
	InSource            = "sourceMap"
	pointShadowPrefix   = "pointShadowMaps"
	directionShadowName = "directionShadowMaps"
)

// PointShadowInput names slot i of the point shadow array.
func PointShadowInput(i int) string { return fmt.Sprintf("%s[%d]", pointShadowPrefix, i) }

// DirectionShadowInput names slot i of the direction shadow array.
func DirectionShadowInput(i int) string { return fmt.Sprintf("%s[%d]", directionShadowName, i) }

var (
	GBuffer = Descriptor{
		Name: "gbuffer",
		Inputs: []Input{
			{InAlbedo, 0, Texture2D},
			{InNormal, 1, Texture2D},
			{InMetallic, 2, Texture2D},
			{InRoughness, 3, Texture2D},
			{InAO, 4, Texture2D},
		},
		State: State{DepthTest: true, DepthWrite: true, DepthFunc: DepthLess, Cull: CullBack},
		Clear: Clear{Color: true, Depth: true},
	}

	ShadowPoint = Descriptor{
		Name:  "shadow-point",
		State: State{DepthTest: true, DepthWrite: true, DepthFunc: DepthLess, Cull: CullFront},
		Clear: Clear{Depth: true},
	}

	ShadowDirection = Descriptor{
		Name:  "shadow-direction",
		State: State{DepthTest: true, DepthWrite: true, DepthFunc: DepthLess, Cull: CullFront},
		Clear: Clear{Depth: true},
	}

	SSAO = Descriptor{
		Name: "ssao",
		Inputs: []Input{
			{InGViewPosition, 0, Texture2D},
			{InGViewNormal, 1, Texture2D},
			{InNoise, 2, Texture2D},
		},
		Clear: Clear{Color: true, ColorValue: [4]float32{1, 1, 1, 1}},
	}

	SSAOBlur = Descriptor{
		Name:   "ssao-blur",
		Inputs: []Input{{InSource, 0, Texture2D}},
	}

	Lighting = Descriptor{
		Name:   "lighting",
		Inputs: lightingInputs(),
		Clear:  Clear{Color: true},
	}

	// Skybox draws into the lighting target and tests against the G-buffer
	// depth it shares.
	Skybox = Descriptor{
		Name:   "skybox",
		Inputs: []Input{{InEnvironment, 0, TextureCube}},
		State:  State{DepthTest: true, DepthWrite: false, DepthFunc: DepthLEqual, SeamlessCube: true},
	}

	TAA = Descriptor{
		Name: "taa",
		Inputs: []Input{
			{InCurrent, 0, Texture2D},
			{InHistory, 1, Texture2D},
			{InGVelocity, 2, Texture2D},
		},
	}

	Present = Descriptor{
		Name:   "present",
		Inputs: []Input{{InSource, 0, Texture2D}},
		Clear:  Clear{Color: true, Depth: true},
	}

	Equirect = Descriptor{
		Name:   "ibl-equirect",
		Inputs: []Input{{InEquirect, 0, Texture2D}},
		Clear:  Clear{Color: true, Depth: true},
	}

	Irradiance = Descriptor{
		Name:   "ibl-irradiance",
		Inputs: []Input{{InEnvironment, 0, TextureCube}},
		State:  State{SeamlessCube: true},
		Clear:  Clear{Color: true, Depth: true},
	}

	Prefilter = Descriptor{
		Name:   "ibl-prefilter",
		Inputs: []Input{{InEnvironment, 0, TextureCube}},
		State:  State{SeamlessCube: true},
		Clear:  Clear{Color: true, Depth: true},
	}

	BRDF = Descriptor{
		Name:  "ibl-brdf",
		Clear: Clear{Color: true, Depth: true},
	}
)

func lightingInputs() []Input {
	in := []Input{
		{InGPositionAO, 0, Texture2D},
		{InGAlbedoRoughness, 1, Texture2D},
		{InGNormalMetallic, 2, Texture2D},
		{InIrradiance, 3, TextureCube},
		{InPrefilter, 4, TextureCube},
		{InBRDF, 5, Texture2D},
		{InSSAO, 6, Texture2D},
		{InGViewPosition, 7, Texture2D},
	}
	for i := 0; i < config.MaxPointShadowSlots; i++ {
		in = append(in, Input{PointShadowInput(i), UnitPointShadowBase + i, TextureCube})
	}
	for i := 0; i < config.MaxDirectionShadowSlots; i++ {
		in = append(in, Input{DirectionShadowInput(i), UnitDirectionShadowBase + i, Texture2D})
	}
	return in
}

// All lists every descriptor, for validation and program setup.
func All() []*Descriptor {
	return []*Descriptor{
		&GBuffer, &ShadowPoint, &ShadowDirection, &SSAO, &SSAOBlur, &Lighting,
		&Skybox, &TAA, &Present, &Equirect, &Irradiance, &Prefilter, &BRDF,
	}
}
