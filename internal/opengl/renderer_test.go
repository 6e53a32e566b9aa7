package opengl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbr-engine/internal/config"
	"pbr-engine/internal/resource"
	"pbr-engine/scene"
)

// countingBackend hands out handles without touching GL.
type countingBackend struct {
	next    uint32
	deleted []uint32
}

func (b *countingBackend) handle() uint32 { b.next++; return b.next }

func (b *countingBackend) UploadTexture2D(*scene.Image, bool) (uint32, error) {
	return b.handle(), nil
}
func (b *countingBackend) AllocTexture2D(int, int, int, bool) (uint32, error) {
	return b.handle(), nil
}
func (b *countingBackend) AllocTextureCube(int, int, bool, bool) (uint32, error) {
	return b.handle(), nil
}
func (b *countingBackend) UploadMesh(*scene.Mesh) (resource.MeshHandle, error) {
	return resource.MeshHandle{VAO: b.handle()}, nil
}
func (b *countingBackend) DeleteTexture(h uint32) { b.deleted = append(b.deleted, h) }
func (b *countingBackend) DeleteMesh(resource.MeshHandle) {}

func TestSkyMapsResizeReallocates(t *testing.T) {
	be := &countingBackend{}
	rm := resource.NewManager(be)
	cfg := config.Default().IBL
	sky := newSkyMaps(rm, cfg)
	sky.equirect = rm.GenTexture2DFromFile("sky.hdr", resource.WithHDR(true))
	for _, id := range []uint64{sky.environment, sky.irradiance, sky.prefilter} {
		require.NotNil(t, rm.TextureCube(id, true))
	}
	old := sky

	cfg.PrefilterSize = 256
	cfg.SkyboxSize = 1024
	sky.resize(rm, cfg)

	assert.Equal(t, old.equirect, sky.equirect)
	assert.Len(t, be.deleted, 3, "loaded cubes are freed")
	assert.Nil(t, rm.TextureCube(old.prefilter, false))
	assert.Equal(t, 256, rm.TextureCube(sky.prefilter, true).Size)
	assert.Equal(t, 1024, rm.TextureCube(sky.environment, true).Size)
	assert.Equal(t, cfg.IrradianceSize, rm.TextureCube(sky.irradiance, true).Size)
}
