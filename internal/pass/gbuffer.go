package pass

// Format is a render target storage format.
type Format int

const (
	FormatRGBA16F Format = iota
	FormatRG16F
	FormatR16F
	FormatDepth32F
)

// GBufferTarget indexes the G-buffer color attachments.
type GBufferTarget int

const (
	GPositionAO GBufferTarget = iota
	GAlbedoRoughness
	GNormalMetallic
	GViewPosition
	GViewNormal
	GVelocity

	GBufferTargets
)

// TargetSpec names one G-buffer color attachment and its format. The
// attachment index equals the GBufferTarget value and the fragment output
// location.
type TargetSpec struct {
	Name   string
	Format Format
}

var GBufferLayout = [GBufferTargets]TargetSpec{
	GPositionAO:      {InGPositionAO, FormatRGBA16F},
	GAlbedoRoughness: {InGAlbedoRoughness, FormatRGBA16F},
	GNormalMetallic:  {InGNormalMetallic, FormatRGBA16F},
	GViewPosition:    {InGViewPosition, FormatRGBA16F},
	GViewNormal:      {InGViewNormal, FormatRGBA16F},
	GVelocity:        {InGVelocity, FormatRG16F},
}
