// Package resource owns every texture and model the renderer draws with.
// Resources are created unloaded and identified by a uint64 id; the first
// typed access with load set decodes the file and uploads it through a
// Backend. Failed loads are terminal: the resource keeps a zero handle.
package resource

import (
	"fmt"

	"pbr-engine/core"
	"pbr-engine/internal/logger"
	"pbr-engine/scene"
)

// Kind discriminates the Resource variant.
type Kind int

const (
	KindTexture2D Kind = iota + 1
	KindTextureCube
	KindModel
)

func (k Kind) String() string {
	switch k {
	case KindTexture2D:
		return "texture2d"
	case KindTextureCube:
		return "texturecube"
	case KindModel:
		return "model"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Texture2D is a 2D texture, either decoded from Path, a 1x1 solid color, or
// an empty procedural target of the given size.
type Texture2D struct {
	Path         string
	Width        int
	Height       int
	Channels     int
	HDR          bool
	Mipmap       bool
	FlipVertical bool

	Handle uint32

	solid *core.Color
}

// TextureCube is a procedural cube map, filled by render passes.
type TextureCube struct {
	Size     int
	Channels int
	HDR      bool
	Mipmap   bool

	Handle uint32
}

// MeshHandle is one uploaded mesh.
type MeshHandle struct {
	VAO        uint32
	VBO        uint32
	EBO        uint32
	IndexCount int32
	Bounds     scene.AABB
}

// Model is a set of meshes loaded from Path or registered in memory.
type Model struct {
	Path   string
	Name   string
	Meshes []MeshHandle

	source []*scene.Mesh
}

// Resource is the tagged variant. Exactly one payload matching Kind is set.
type Resource struct {
	ID   uint64
	Kind Kind

	texture2D   *Texture2D
	textureCube *TextureCube
	model       *Model

	loaded  bool
	mgr     *Manager
	pending decoded
}

// decoded holds CPU-side data produced ahead of upload by Preload.
type decoded struct {
	image  *scene.Image
	meshes []*scene.Mesh
	err    error
	ready  bool
}

// Loaded reports whether Load has run, successfully or not.
func (r *Resource) Loaded() bool { return r.loaded }

// Path returns the backing file, or "" for procedural resources.
func (r *Resource) Path() string {
	switch r.Kind {
	case KindTexture2D:
		return r.texture2D.Path
	case KindModel:
		return r.model.Path
	}
	return ""
}

// Load decodes and uploads the resource once. A failure is logged, leaves a
// zero handle, and is not retried by later calls.
func (r *Resource) Load() error {
	if r.loaded {
		return nil
	}
	r.loaded = true

	var err error
	switch r.Kind {
	case KindTexture2D:
		err = r.loadTexture2D()
	case KindTextureCube:
		err = r.loadTextureCube()
	case KindModel:
		err = r.loadModel()
	default:
		err = fmt.Errorf("unknown resource kind %v", r.Kind)
	}
	r.pending = decoded{}
	if err != nil {
		logger.Logger().Warn("resource load failed", "id", r.ID, "kind", r.Kind, "path", r.Path(), "err", err)
		return fmt.Errorf("load resource %d: %w", r.ID, err)
	}
	return nil
}

// decode runs the CPU half of Load. It touches no GL state and is safe to
// call from worker goroutines.
func (r *Resource) decode() decoded {
	switch r.Kind {
	case KindTexture2D:
		t := r.texture2D
		if t.Path == "" {
			return decoded{}
		}
		img, err := scene.LoadImage(t.Path, t.HDR, t.FlipVertical)
		return decoded{image: img, err: err, ready: true}
	case KindModel:
		m := r.model
		if m.Path == "" {
			return decoded{}
		}
		meshes, err := scene.LoadModel(m.Path)
		return decoded{meshes: meshes, err: err, ready: true}
	}
	return decoded{}
}

func (r *Resource) fileBacked() bool {
	return r.Path() != ""
}

func (r *Resource) loadTexture2D() error {
	t := r.texture2D
	be := r.mgr.backend

	var img *scene.Image
	switch {
	case t.solid != nil:
		img = scene.SolidImage(*t.solid)
	case t.Path != "":
		d := r.pending
		if !d.ready {
			d = r.decode()
		}
		if d.err != nil {
			return d.err
		}
		img = d.image
	default:
		h, err := be.AllocTexture2D(t.Width, t.Height, t.Channels, t.HDR)
		if err != nil {
			return err
		}
		t.Handle = h
		return nil
	}

	t.Width, t.Height, t.Channels = img.Width, img.Height, img.Channels
	if img.HDR() {
		t.HDR = true
	}
	h, err := be.UploadTexture2D(img, t.Mipmap)
	if err != nil {
		return err
	}
	t.Handle = h
	return nil
}

func (r *Resource) loadTextureCube() error {
	c := r.textureCube
	h, err := r.mgr.backend.AllocTextureCube(c.Size, c.Channels, c.HDR, c.Mipmap)
	if err != nil {
		return err
	}
	c.Handle = h
	return nil
}

func (r *Resource) loadModel() error {
	m := r.model
	meshes := m.source
	if m.Path != "" {
		d := r.pending
		if !d.ready {
			d = r.decode()
		}
		if d.err != nil {
			return d.err
		}
		meshes = d.meshes
	}
	for _, mesh := range meshes {
		h, err := r.mgr.backend.UploadMesh(mesh)
		if err != nil {
			return fmt.Errorf("mesh %q: %w", mesh.Name, err)
		}
		m.Meshes = append(m.Meshes, h)
	}
	m.source = nil
	return nil
}

func (r *Resource) release() {
	if !r.loaded {
		return
	}
	be := r.mgr.backend
	switch r.Kind {
	case KindTexture2D:
		if r.texture2D.Handle != 0 {
			be.DeleteTexture(r.texture2D.Handle)
			r.texture2D.Handle = 0
		}
	case KindTextureCube:
		if r.textureCube.Handle != 0 {
			be.DeleteTexture(r.textureCube.Handle)
			r.textureCube.Handle = 0
		}
	case KindModel:
		for _, h := range r.model.Meshes {
			be.DeleteMesh(h)
		}
		r.model.Meshes = nil
	}
}
