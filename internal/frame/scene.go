// Package frame holds the renderer's per-frame CPU state: registered render
// items and lights, shadow-slot assignment, jitter and TAA history
// bookkeeping, and the SSAO sample kernel. Nothing here touches the GPU.
package frame

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrDuplicateID = errors.New("id already registered")
	ErrNotFound    = errors.New("id not registered")
)

// NoShadow marks a light without a shadow slot this frame.
const NoShadow = -1

// RenderItem is a drawable: a model resource, five material texture
// resources, and the current and previous world transforms.
type RenderItem struct {
	ObjectID uint64

	Mesh      uint64
	Albedo    uint64
	Normal    uint64
	Metallic  uint64
	Roughness uint64
	AO        uint64

	Transform     mgl32.Mat4
	LastTransform mgl32.Mat4
}

type PointLight struct {
	ID         uint64
	Position   mgl32.Vec3
	Color      mgl32.Vec3
	Radius     float32
	CastShadow bool

	// Set by AssignShadowSlots.
	ShadowIndex int
	ViewProjs   [6]mgl32.Mat4
}

type DirectionLight struct {
	ID         uint64
	Direction  mgl32.Vec3
	Color      mgl32.Vec3
	CastShadow bool

	// Set by AssignShadowSlots.
	ShadowIndex int
	ViewProj    mgl32.Mat4
}

// collection keeps entries in insertion order so every frame iterates them
// the same way.
type collection[T any] struct {
	kind    string
	index   map[uint64]int
	ids     []uint64
	entries []T
}

func newCollection[T any](kind string) collection[T] {
	return collection[T]{kind: kind, index: make(map[uint64]int)}
}

func (c *collection[T]) add(id uint64, v T) error {
	if _, ok := c.index[id]; ok {
		return violation(fmt.Errorf("%s %d: %w", c.kind, id, ErrDuplicateID))
	}
	c.index[id] = len(c.entries)
	c.ids = append(c.ids, id)
	c.entries = append(c.entries, v)
	return nil
}

func (c *collection[T]) del(id uint64) error {
	i, ok := c.index[id]
	if !ok {
		return fmt.Errorf("%s %d: %w", c.kind, id, ErrNotFound)
	}
	delete(c.index, id)
	c.ids = append(c.ids[:i], c.ids[i+1:]...)
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	for j := i; j < len(c.ids); j++ {
		c.index[c.ids[j]] = j
	}
	return nil
}

func (c *collection[T]) get(id uint64) (T, bool) {
	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.entries[i], true
}

func (c *collection[T]) clear() {
	clear(c.index)
	c.ids = c.ids[:0]
	c.entries = c.entries[:0]
}

// Scene is the renderer's copy of everything drawn this frame. It is not
// safe for concurrent use; mutate it only between frames.
type Scene struct {
	items  collection[RenderItem]
	points collection[PointLight]
	dirs   collection[DirectionLight]
}

func NewScene() *Scene {
	return &Scene{
		items:  newCollection[RenderItem]("render item"),
		points: newCollection[PointLight]("point light"),
		dirs:   newCollection[DirectionLight]("direction light"),
	}
}

// AddRenderItem registers item. An id that is already present is rejected
// with ErrDuplicateID and the existing entry is kept.
func (s *Scene) AddRenderItem(item RenderItem) error {
	return s.items.add(item.ObjectID, item)
}

func (s *Scene) DelRenderItem(id uint64) error { return s.items.del(id) }
func (s *Scene) ClearRenderItems()             { s.items.clear() }

func (s *Scene) RenderItem(id uint64) (RenderItem, bool) { return s.items.get(id) }

// RenderItems returns the registered items in insertion order. The slice is
// owned by the scene.
func (s *Scene) RenderItems() []RenderItem { return s.items.entries }

func (s *Scene) AddPointLight(l PointLight) error {
	l.ShadowIndex = NoShadow
	return s.points.add(l.ID, l)
}

func (s *Scene) DelPointLight(id uint64) error { return s.points.del(id) }
func (s *Scene) ClearPointLights()             { s.points.clear() }

func (s *Scene) PointLight(id uint64) (PointLight, bool) { return s.points.get(id) }
func (s *Scene) PointLights() []PointLight               { return s.points.entries }

func (s *Scene) AddDirectionLight(l DirectionLight) error {
	l.ShadowIndex = NoShadow
	return s.dirs.add(l.ID, l)
}

func (s *Scene) DelDirectionLight(id uint64) error { return s.dirs.del(id) }
func (s *Scene) ClearDirectionLights()             { s.dirs.clear() }

func (s *Scene) DirectionLight(id uint64) (DirectionLight, bool) { return s.dirs.get(id) }
func (s *Scene) DirectionLights() []DirectionLight               { return s.dirs.entries }
