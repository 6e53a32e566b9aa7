package main

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/core"
	"pbr-engine/internal/config"
	"pbr-engine/scene"
)

const (
	lookSpeed  = 0.005
	zoomSpeed  = 12.0
	panSpeed   = 8.0
	maxFrameDt = 0.05
)

// orbitControl drives an orbit camera: right mouse drag orbits, W/S zoom,
// A/D and Q/E pan the target across the ground plane.
type orbitControl struct {
	*scene.OrbitCamera

	lastX, lastY float64
	dragging     bool
}

func newOrbitControl(aspect, near, far float32) *orbitControl {
	cam := scene.NewOrbitCamera(mgl32.Vec3{0, 1, 0}, 14, mgl32.DegToRad(60), aspect, near, far)
	return &orbitControl{OrbitCamera: cam}
}

func (c *orbitControl) Update(window *core.Window, dt float32) {
	// Long stalls would otherwise jump the camera.
	dt = min(dt, maxFrameDt)

	if window.IsMouseButtonPressed(core.MouseButtonRight) {
		x, y := window.GetCursorPos()
		if c.dragging {
			c.Orbit(float32(x-c.lastX)*lookSpeed, float32(c.lastY-y)*lookSpeed)
		}
		c.lastX, c.lastY = x, y
		c.dragging = true
	} else {
		c.dragging = false
	}

	speed := float32(1)
	if window.IsKeyPressed(core.KeyLeftShift) {
		speed = 3
	}
	if window.IsKeyPressed(core.KeyW) {
		c.Zoom(-zoomSpeed * speed * dt)
	}
	if window.IsKeyPressed(core.KeyS) {
		c.Zoom(zoomSpeed * speed * dt)
	}

	// Pan along the camera's ground-projected axes.
	sy, cy := math32.Sincos(c.Yaw)
	forward := mgl32.Vec3{sy, 0, -cy}
	right := mgl32.Vec3{cy, 0, sy}
	var move mgl32.Vec3
	if window.IsKeyPressed(core.KeyD) {
		move = move.Add(right)
	}
	if window.IsKeyPressed(core.KeyA) {
		move = move.Sub(right)
	}
	if window.IsKeyPressed(core.KeyE) {
		move = move.Add(forward)
	}
	if window.IsKeyPressed(core.KeyQ) {
		move = move.Sub(forward)
	}
	if move.Len() > 0 {
		c.Target = c.Target.Add(move.Normalize().Mul(panSpeed * speed * dt))
		c.UpdatePosition()
	}
}

// toggles flips runtime options on key press: O for SSAO, C for shadows,
// T for temporal accumulation.
type toggles struct {
	wasDown map[int]bool
}

func newToggles() *toggles {
	return &toggles{wasDown: map[int]bool{}}
}

func (t *toggles) pressed(window *core.Window, key int) bool {
	down := window.IsKeyPressed(key)
	hit := down && !t.wasDown[key]
	t.wasDown[key] = down
	return hit
}

// Update applies any toggles to rt and reports whether it changed.
func (t *toggles) Update(window *core.Window, rt *config.Runtime) bool {
	changed := false
	if t.pressed(window, core.KeyO) {
		rt.SSAO = !rt.SSAO
		changed = true
	}
	if t.pressed(window, core.KeyC) {
		rt.Shadows = !rt.Shadows
		changed = true
	}
	if t.pressed(window, core.KeyT) {
		if rt.TAABlendRatio > 0 {
			rt.TAABlendRatio = 0
		} else {
			rt.TAABlendRatio = config.Default().TAA.BlendRatio
		}
		changed = true
	}
	return changed
}
