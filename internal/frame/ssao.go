package frame

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// SSAONoiseSize is the edge length of the tiled rotation texture.
const SSAONoiseSize = 4

// SSAOKernel builds n hemisphere samples around +Z. Sample i is scaled by
// lerp(0.1, 1, (i/n)^2) so most samples sit close to the surface.
func SSAOKernel(n int, seed uint64) []mgl32.Vec3 {
	rng := rand.New(rand.NewPCG(seed, 0x55a0))
	kernel := make([]mgl32.Vec3, n)
	for i := range kernel {
		v := mgl32.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32(),
		}
		if v.LenSqr() < 1e-8 {
			v = mgl32.Vec3{0, 0, 1}
		}
		v = v.Normalize().Mul(rng.Float32())

		t := float32(i) / float32(n)
		kernel[i] = v.Mul(0.1 + 0.9*t*t)
	}
	return kernel
}

// SSAONoise builds the 4x4 tangent-plane rotation vectors (z = 0).
func SSAONoise(seed uint64) []mgl32.Vec3 {
	rng := rand.New(rand.NewPCG(seed, 0x7e57))
	noise := make([]mgl32.Vec3, SSAONoiseSize*SSAONoiseSize)
	for i := range noise {
		noise[i] = mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, 0}
	}
	return noise
}
