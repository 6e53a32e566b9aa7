package frame

import (
	"github.com/go-gl/mathgl/mgl32"
)

// JitterPeriod is the length of the sub-pixel jitter cycle.
const JitterPeriod = 16

// Halton returns the index-th element (index >= 1) of the radical-inverse
// sequence in the given base, in [0,1).
func Halton(index, base int) float32 {
	f := float32(1)
	r := float32(0)
	for i := index; i > 0; i /= base {
		f /= float32(base)
		r += f * float32(i%base)
	}
	return r
}

// jitterSequence holds Halton(2,3) offsets in pixels, centred on zero.
var jitterSequence = func() [JitterPeriod]mgl32.Vec2 {
	var seq [JitterPeriod]mgl32.Vec2
	for i := range seq {
		seq[i] = mgl32.Vec2{Halton(i+1, 2) - 0.5, Halton(i+1, 3) - 0.5}
	}
	return seq
}()

// JitterAt returns the pixel offset for a frame index, in [-0.5, 0.5).
func JitterAt(frame uint64) mgl32.Vec2 {
	return jitterSequence[frame%JitterPeriod]
}

// JitterProjection shifts proj by an offset expressed in NDC units.
func JitterProjection(proj mgl32.Mat4, ndc mgl32.Vec2) mgl32.Mat4 {
	return mgl32.Translate3D(ndc.X(), ndc.Y(), 0).Mul4(proj)
}

// ResolveMode selects what the TAA pass does this frame.
type ResolveMode int

const (
	// ResolveSeed copies the jittered frame into history without blending.
	ResolveSeed ResolveMode = iota
	// ResolveBlend mixes the jittered frame with reprojected history.
	ResolveBlend
)

// TAA tracks the temporal state shared by the G-buffer, SSAO and resolve
// passes.
type TAA struct {
	BlendRatio     float32
	JitterStrength float32

	frame  uint64
	seeded bool
}

func NewTAA(blendRatio, jitterStrength float32) *TAA {
	return &TAA{BlendRatio: blendRatio, JitterStrength: jitterStrength}
}

// Frame is the number of Advance calls so far.
func (t *TAA) Frame() uint64 { return t.frame }

// Jitter is this frame's pixel offset scaled by JitterStrength.
func (t *TAA) Jitter() mgl32.Vec2 {
	return JitterAt(t.frame).Mul(t.JitterStrength)
}

// NDCJitter converts Jitter to NDC units for a viewport.
func (t *TAA) NDCJitter(width, height int) mgl32.Vec2 {
	j := t.Jitter()
	return mgl32.Vec2{j.X() * 2 / float32(width), j.Y() * 2 / float32(height)}
}

func (t *TAA) Mode() ResolveMode {
	if !t.seeded {
		return ResolveSeed
	}
	return ResolveBlend
}

// Resolved records that history now holds a valid frame.
func (t *TAA) Resolved() { t.seeded = true }

// Advance moves to the next jitter offset.
func (t *TAA) Advance() { t.frame++ }

// Reset drops history, e.g. after a resize. The jitter index keeps running.
func (t *TAA) Reset() { t.seeded = false }
