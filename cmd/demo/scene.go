package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/core"
	"pbr-engine/internal/frame"
	"pbr-engine/internal/opengl"
	"pbr-engine/scene"
)

const (
	gridSize    = 5
	gridSpacing = 2.5
	lightHeight = 0.6
	lightRadius = 4.0
	sunPeriod   = 120.0
)

// orbitingLight circles the origin at a fixed radius and height.
type orbitingLight struct {
	radius, height float32
	phase, speed   float32
	color          mgl32.Vec3
	reach          float32
	shadow         bool
}

func (o orbitingLight) position(t float32) mgl32.Vec3 {
	s, c := math32.Sincos(o.phase + o.speed*t)
	return mgl32.Vec3{c * o.radius, o.height, s * o.radius}
}

// demoScene is a grid of spheres of varying metalness and roughness on a
// ground plane, lit by orbiting point lights and a slowly turning sun.
type demoScene struct {
	lights []orbitingLight
	sunID  uint64
	time   float32
}

func buildScene(r *opengl.Renderer, opts options) (*demoScene, error) {
	rm := r.Resources()
	sphere := rm.GenModelFromMeshes("sphere", scene.CreateSphere(0.8, 48, 24))
	ground := rm.GenModelFromMeshes("ground", scene.CreatePlane(60, 60, 1))

	var nextID uint64
	id := func() uint64 {
		nextID++
		return nextID
	}

	grey := func(v float32) uint64 { return rm.GenSolidTexture(core.Color{R: v, G: v, B: v, A: 1}) }

	items := []frame.RenderItem{{
		ObjectID:  id(),
		Mesh:      ground,
		Albedo:    rm.GenSolidTexture(core.Color{R: 0.55, G: 0.55, B: 0.52, A: 1}),
		Roughness: grey(0.9),
		Transform: mgl32.Ident4(),
	}}
	for row := range gridSize {
		for col := range gridSize {
			x := (float32(col) - (gridSize-1)/2.0) * gridSpacing
			z := (float32(row) - (gridSize-1)/2.0) * gridSpacing
			items = append(items, frame.RenderItem{
				ObjectID:  id(),
				Mesh:      sphere,
				Albedo:    rm.GenSolidTexture(core.Color{R: 0.9, G: 0.2 + 0.15*float32(row), B: 0.15, A: 1}),
				Metallic:  grey(float32(row) / (gridSize - 1)),
				Roughness: grey(0.05 + 0.9*float32(col)/(gridSize-1)),
				Transform: mgl32.Translate3D(x, 0.8, z),
			})
		}
	}
	if opts.model != "" {
		items = append(items, frame.RenderItem{
			ObjectID:  id(),
			Mesh:      rm.GenModel(opts.model),
			Transform: mgl32.Translate3D(0, 0, -10),
		})
	}
	for _, it := range items {
		it.LastTransform = it.Transform
		if err := r.AddRenderItem(it); err != nil {
			return nil, fmt.Errorf("item %d: %w", it.ObjectID, err)
		}
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	s := &demoScene{}
	for i := range 2 {
		s.lights = append(s.lights, orbitingLight{
			radius: 5, height: 3,
			phase: float32(i) * math32.Pi, speed: 0.4,
			color: mgl32.Vec3{6, 5, 4}, reach: 15, shadow: true,
		})
	}
	for range opts.lights {
		s.lights = append(s.lights, orbitingLight{
			radius: 2 + rng.Float32()*12,
			height: lightHeight + rng.Float32()*1.5,
			phase:  rng.Float32() * 2 * math32.Pi,
			speed:  (rng.Float32() - 0.5) * 1.2,
			color:  mgl32.Vec3{rng.Float32(), rng.Float32(), rng.Float32()}.Mul(3),
			reach:  lightRadius,
		})
	}

	s.sunID = id()
	if err := r.AddDirectionLight(s.sun()); err != nil {
		return nil, err
	}
	s.placeLights(r)
	return s, nil
}

func (s *demoScene) sun() frame.DirectionLight {
	angle := 2 * math32.Pi * s.time / sunPeriod
	sy, cy := math32.Sincos(angle)
	return frame.DirectionLight{
		ID:         s.sunID,
		Direction:  mgl32.Vec3{cy, -0.8, sy}.Normalize(),
		Color:      mgl32.Vec3{1.6, 1.5, 1.3},
		CastShadow: true,
	}
}

// placeLights re-registers every point light at its current position. The
// list is rebuilt in the same order each frame so shadow slots stay put.
func (s *demoScene) placeLights(r *opengl.Renderer) {
	r.ClearPointLight()
	for i, l := range s.lights {
		_ = r.AddPointLight(frame.PointLight{
			ID:         uint64(i + 1),
			Position:   l.position(s.time),
			Color:      l.color,
			Radius:     l.reach,
			CastShadow: l.shadow,
		})
	}
}

func (s *demoScene) Update(r *opengl.Renderer, dt float32) {
	s.time += dt
	s.placeLights(r)
	_ = r.DelDirectionLight(s.sunID)
	_ = r.AddDirectionLight(s.sun())
}
