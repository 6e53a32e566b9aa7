package resource

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"pbr-engine/core"
	"pbr-engine/internal/logger"
	"pbr-engine/scene"
)

// Backend uploads decoded data to the GPU. The GL implementation lives in
// internal/opengl; every method runs on the GL thread.
type Backend interface {
	UploadTexture2D(img *scene.Image, mipmap bool) (uint32, error)
	AllocTexture2D(width, height, channels int, hdr bool) (uint32, error)
	AllocTextureCube(size, channels int, hdr, mipmap bool) (uint32, error)
	UploadMesh(m *scene.Mesh) (MeshHandle, error)
	DeleteTexture(handle uint32)
	DeleteMesh(h MeshHandle)
}

// TextureOption configures a file-backed 2D texture.
type TextureOption func(*Texture2D)

func WithMipmap(on bool) TextureOption       { return func(t *Texture2D) { t.Mipmap = on } }
func WithHDR(on bool) TextureOption          { return func(t *Texture2D) { t.HDR = on } }
func WithFlipVertical(on bool) TextureOption { return func(t *Texture2D) { t.FlipVertical = on } }

// Manager hands out resource ids and owns every resource it created.
type Manager struct {
	backend Backend

	mu        sync.Mutex
	counter   uint64
	resources map[uint64]*Resource
	byPath    map[string]uint64
	bySolid   map[core.Color]uint64
	byName    map[string]uint64

	pool worker.DynamicWorkerPool
}

func NewManager(backend Backend) *Manager {
	return &Manager{
		backend:   backend,
		resources: make(map[uint64]*Resource),
		byPath:    make(map[string]uint64),
		bySolid:   make(map[core.Color]uint64),
		byName:    make(map[string]uint64),
	}
}

func (m *Manager) add(r *Resource) uint64 {
	m.counter++
	r.ID = m.counter
	r.mgr = m
	m.resources[r.ID] = r
	return r.ID
}

// GenTexture2DFromFile registers a texture file. Registering the same path
// again returns the first id and ignores the new options.
func (m *Manager) GenTexture2DFromFile(path string, opts ...TextureOption) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := KindTexture2D.String() + ":" + path
	if id, ok := m.byPath[key]; ok {
		return id
	}
	t := &Texture2D{Path: path, Mipmap: true}
	for _, opt := range opts {
		opt(t)
	}
	id := m.add(&Resource{Kind: KindTexture2D, texture2D: t})
	m.byPath[key] = id
	return id
}

// GenTexture2D registers an empty procedural texture.
func (m *Manager) GenTexture2D(width, height, channels int, hdr bool) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(&Resource{Kind: KindTexture2D, texture2D: &Texture2D{
		Width: width, Height: height, Channels: channels, HDR: hdr,
	}})
}

// GenSolidTexture registers a 1x1 texture of c, shared by every caller
// asking for the same color.
func (m *Manager) GenSolidTexture(c core.Color) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.bySolid[c]; ok {
		return id
	}
	col := c
	id := m.add(&Resource{Kind: KindTexture2D, texture2D: &Texture2D{
		Width: 1, Height: 1, Channels: 4, solid: &col,
	}})
	m.bySolid[c] = id
	return id
}

// GenTextureCube registers an empty procedural cube map.
func (m *Manager) GenTextureCube(size, channels int, hdr, mipmap bool) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(&Resource{Kind: KindTextureCube, textureCube: &TextureCube{
		Size: size, Channels: channels, HDR: hdr, Mipmap: mipmap,
	}})
}

// GenModel registers a model file (.gltf, .glb, .obj), deduplicated by path.
func (m *Manager) GenModel(path string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := KindModel.String() + ":" + path
	if id, ok := m.byPath[key]; ok {
		return id
	}
	id := m.add(&Resource{Kind: KindModel, model: &Model{Path: path, Name: path}})
	m.byPath[key] = id
	return id
}

// GenModelFromMeshes registers in-memory meshes under name. A second call
// with the same name returns the first id.
func (m *Manager) GenModelFromMeshes(name string, meshes ...*scene.Mesh) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byName[name]; ok {
		return id
	}
	id := m.add(&Resource{Kind: KindModel, model: &Model{Name: name, source: meshes}})
	m.byName[name] = id
	return id
}

// Get returns the resource registered under id.
func (m *Manager) Get(id uint64) (*Resource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	return r, ok
}

// Len reports how many resources are registered.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources)
}

func (m *Manager) typed(id uint64, kind Kind, load bool) *Resource {
	r, ok := m.Get(id)
	if !ok || r.Kind != kind {
		return nil
	}
	if load {
		_ = r.Load()
	}
	return r
}

// Texture2D returns the 2D texture with id, loading it first when load is
// set. Unknown ids and ids of another kind return nil.
func (m *Manager) Texture2D(id uint64, load bool) *Texture2D {
	if r := m.typed(id, KindTexture2D, load); r != nil {
		return r.texture2D
	}
	return nil
}

func (m *Manager) TextureCube(id uint64, load bool) *TextureCube {
	if r := m.typed(id, KindTextureCube, load); r != nil {
		return r.textureCube
	}
	return nil
}

func (m *Manager) Model(id uint64, load bool) *Model {
	if r := m.typed(id, KindModel, load); r != nil {
		return r.model
	}
	return nil
}

// Load loads the resource with id.
func (m *Manager) Load(id uint64) error {
	r, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("resource %d: not registered", id)
	}
	return r.Load()
}

// Preload decodes the file-backed resources among ids on a worker pool,
// then uploads them on the calling goroutine, which must own the GL
// context. Ids that are unknown, procedural, or already loaded are skipped.
func (m *Manager) Preload(ids ...uint64) {
	var todo []*Resource
	for _, id := range ids {
		if r, ok := m.Get(id); ok && !r.loaded && r.fileBacked() {
			todo = append(todo, r)
		}
	}
	if len(todo) == 0 {
		return
	}

	m.mu.Lock()
	if m.pool == nil {
		m.pool = worker.NewDynamicWorkerPool(runtime.NumCPU(), 256, 1*time.Second)
	}
	pool := m.pool
	m.mu.Unlock()

	start := time.Now()
	results := make([]decoded, len(todo))
	var wg sync.WaitGroup
	for i, r := range todo {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				results[i] = r.decode()
				return nil, results[i].err
			},
		})
	}
	wg.Wait()

	for i, r := range todo {
		r.pending = results[i]
		_ = r.Load()
	}
	logger.Logger().Debug("resources preloaded", "count", len(todo), "elapsed", time.Since(start))
}

// Release frees the GPU handles of id and unregisters it. A later Gen call
// for the same path, name or color gets a new id.
func (m *Manager) Release(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[id]
	if !ok {
		return fmt.Errorf("resource %d: not registered", id)
	}
	r.release()
	delete(m.resources, id)
	for k, v := range m.byPath {
		if v == id {
			delete(m.byPath, k)
		}
	}
	for k, v := range m.bySolid {
		if v == id {
			delete(m.bySolid, k)
		}
	}
	for k, v := range m.byName {
		if v == id {
			delete(m.byName, k)
		}
	}
	return nil
}

// Close releases every GPU handle and stops the decode pool. Resource ids
// stay registered but resolve to zero handles.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		r.release()
	}
	if m.pool != nil {
		m.pool.Stop()
		m.pool = nil
	}
}
