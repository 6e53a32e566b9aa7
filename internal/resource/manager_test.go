package resource

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbr-engine/core"
	"pbr-engine/scene"
)

type fakeBackend struct {
	mu       sync.Mutex
	next     uint32
	uploads  []*scene.Image
	allocs   int
	cubes    int
	meshes   int
	deleted  []uint32
	meshDels int
}

func (b *fakeBackend) handle() uint32 {
	b.next++
	return b.next
}

func (b *fakeBackend) UploadTexture2D(img *scene.Image, mipmap bool) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, img)
	return b.handle(), nil
}

func (b *fakeBackend) AllocTexture2D(width, height, channels int, hdr bool) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocs++
	return b.handle(), nil
}

func (b *fakeBackend) AllocTextureCube(size, channels int, hdr, mipmap bool) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cubes++
	return b.handle(), nil
}

func (b *fakeBackend) UploadMesh(m *scene.Mesh) (MeshHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meshes++
	return MeshHandle{VAO: b.handle(), IndexCount: int32(m.IndexCount()), Bounds: m.Bounds}, nil
}

func (b *fakeBackend) DeleteTexture(handle uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, handle)
}

func (b *fakeBackend) DeleteMesh(h MeshHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meshDels++
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 40), uint8(y * 40), 0, 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

const triangleOBJ = `v 0 0 0
v 1 0 0
v 0 1 0
vt 0 0
vt 1 0
vt 0 1
f 1/1 2/2 3/3
`

func TestIDsStartAtOne(t *testing.T) {
	m := NewManager(&fakeBackend{})
	assert.Equal(t, uint64(1), m.GenTexture2D(4, 4, 4, false))
	assert.Equal(t, uint64(2), m.GenTextureCube(16, 3, true, false))
	assert.Equal(t, 2, m.Len())
}

func TestPathDedupe(t *testing.T) {
	m := NewManager(&fakeBackend{})
	a := m.GenTexture2DFromFile("albedo.png")
	b := m.GenTexture2DFromFile("albedo.png", WithHDR(true))
	assert.Equal(t, a, b)
	assert.False(t, m.Texture2D(a, false).HDR, "options of the second call are ignored")

	model := m.GenModel("albedo.png")
	assert.NotEqual(t, a, model, "models and textures dedupe separately")
	assert.Equal(t, model, m.GenModel("albedo.png"))
}

func TestSolidTextureDedupe(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	white := m.GenSolidTexture(core.ColorWhite)
	assert.Equal(t, white, m.GenSolidTexture(core.ColorWhite))
	assert.NotEqual(t, white, m.GenSolidTexture(core.ColorBlack))

	tex := m.Texture2D(white, true)
	require.NotNil(t, tex)
	assert.NotZero(t, tex.Handle)
	require.Len(t, be.uploads, 1)
	assert.Equal(t, []byte{255, 255, 255, 255}, be.uploads[0].Pixels)
}

func TestProceduralNeverDeduped(t *testing.T) {
	m := NewManager(&fakeBackend{})
	assert.NotEqual(t, m.GenTexture2D(8, 8, 4, true), m.GenTexture2D(8, 8, 4, true))
}

func TestLazyLoad(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	path := writePNG(t, t.TempDir(), "a.png", 3, 2)
	id := m.GenTexture2DFromFile(path)

	r, ok := m.Get(id)
	require.True(t, ok)
	assert.False(t, r.Loaded())
	assert.Zero(t, m.Texture2D(id, false).Handle)
	assert.Empty(t, be.uploads)

	tex := m.Texture2D(id, true)
	assert.True(t, r.Loaded())
	assert.NotZero(t, tex.Handle)
	assert.Equal(t, 3, tex.Width)
	assert.Equal(t, 2, tex.Height)
	assert.Equal(t, 4, tex.Channels)

	m.Texture2D(id, true)
	assert.Len(t, be.uploads, 1, "loaded once")
}

func TestMissingFileIsTerminal(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	id := m.GenTexture2DFromFile(filepath.Join(t.TempDir(), "missing.png"))

	assert.Error(t, m.Load(id))
	tex := m.Texture2D(id, true)
	require.NotNil(t, tex)
	assert.Zero(t, tex.Handle)
	assert.NoError(t, m.Load(id), "not retried")
	assert.Empty(t, be.uploads)
}

func TestTypedAccessorKindMismatch(t *testing.T) {
	m := NewManager(&fakeBackend{})
	cube := m.GenTextureCube(32, 3, true, true)
	assert.Nil(t, m.Texture2D(cube, true))
	assert.Nil(t, m.Model(cube, true))
	assert.NotNil(t, m.TextureCube(cube, true))
	assert.Nil(t, m.TextureCube(999, true))
	assert.Error(t, m.Load(999))
}

func TestModelFromMeshes(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	id := m.GenModelFromMeshes("cube", scene.CreateCube(1), scene.CreatePlane(1, 1, 1))
	assert.Equal(t, id, m.GenModelFromMeshes("cube"))

	model := m.Model(id, true)
	require.NotNil(t, model)
	assert.Len(t, model.Meshes, 2)
	assert.Equal(t, int32(36), model.Meshes[0].IndexCount)
}

func TestModelFromOBJ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.obj")
	require.NoError(t, os.WriteFile(path, []byte(triangleOBJ), 0o644))

	m := NewManager(&fakeBackend{})
	model := m.Model(m.GenModel(path), true)
	require.NotNil(t, model)
	require.Len(t, model.Meshes, 1)
	assert.Equal(t, int32(3), model.Meshes[0].IndexCount)
}

func TestPreload(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	defer m.Close()

	dir := t.TempDir()
	var ids []uint64
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		ids = append(ids, m.GenTexture2DFromFile(writePNG(t, dir, name, 2, 2)))
	}
	missing := m.GenTexture2DFromFile(filepath.Join(dir, "nope.png"))
	procedural := m.GenTexture2D(4, 4, 4, false)

	m.Preload(append(ids, missing, procedural, 12345)...)

	for _, id := range ids {
		r, _ := m.Get(id)
		assert.True(t, r.Loaded())
		assert.NotZero(t, m.Texture2D(id, false).Handle)
	}
	r, _ := m.Get(missing)
	assert.True(t, r.Loaded())
	assert.Zero(t, m.Texture2D(missing, false).Handle)

	r, _ = m.Get(procedural)
	assert.False(t, r.Loaded(), "procedural resources are not preloaded")
	assert.Len(t, be.uploads, 4)
}

func TestClose(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	tex := m.GenSolidTexture(core.ColorFlatNormal)
	cube := m.GenTextureCube(8, 3, true, false)
	model := m.GenModelFromMeshes("sphere", scene.CreateSphere(1, 8, 8))
	unloaded := m.GenTexture2D(2, 2, 4, false)

	m.Texture2D(tex, true)
	m.TextureCube(cube, true)
	m.Model(model, true)

	m.Close()
	assert.Len(t, be.deleted, 2)
	assert.Equal(t, 1, be.meshDels)
	assert.Zero(t, m.Texture2D(tex, false).Handle)
	assert.Zero(t, m.Texture2D(unloaded, false).Handle)
}

func TestRelease(t *testing.T) {
	be := &fakeBackend{}
	m := NewManager(be)
	cube := m.GenTextureCube(128, 3, true, true)
	solid := m.GenSolidTexture(core.ColorWhite)
	m.TextureCube(cube, true)

	require.NoError(t, m.Release(cube))
	require.NoError(t, m.Release(solid))
	assert.Len(t, be.deleted, 1, "only the loaded cube held a handle")
	assert.Nil(t, m.TextureCube(cube, true))
	assert.Equal(t, 0, m.Len())

	again := m.GenSolidTexture(core.ColorWhite)
	assert.NotEqual(t, solid, again)

	bigger := m.GenTextureCube(256, 3, true, true)
	assert.Equal(t, 256, m.TextureCube(bigger, true).Size)
	assert.Error(t, m.Release(cube))
}
