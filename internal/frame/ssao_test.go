package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSSAOKernelHemisphere(t *testing.T) {
	k := SSAOKernel(64, 42)
	assert.Len(t, k, 64)
	for i, v := range k {
		assert.GreaterOrEqual(t, v.Z(), float32(0), "sample %d below the surface", i)
		assert.LessOrEqual(t, v.Len(), float32(1)+1e-5, "sample %d outside the unit hemisphere", i)
	}
}

func TestSSAOKernelScaleGrows(t *testing.T) {
	// the scale envelope bounds each sample's length
	k := SSAOKernel(64, 1)
	for i, v := range k {
		s := float32(i) / 64
		assert.LessOrEqual(t, v.Len(), 0.1+0.9*s*s+1e-5)
	}
}

func TestSSAOKernelDeterministic(t *testing.T) {
	assert.Equal(t, SSAOKernel(16, 7), SSAOKernel(16, 7))
	assert.NotEqual(t, SSAOKernel(16, 7), SSAOKernel(16, 8))
}

func TestSSAONoise(t *testing.T) {
	n := SSAONoise(123)
	assert.Len(t, n, SSAONoiseSize*SSAONoiseSize)
	for _, v := range n {
		assert.Zero(t, v.Z())
		assert.LessOrEqual(t, v.X(), float32(1))
		assert.GreaterOrEqual(t, v.X(), float32(-1))
	}
}
