package frame

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"pbr-engine/internal/config"
)

// CubeFace is one capture direction of a cube map, in GL face order
// (+X, -X, +Y, -Y, +Z, -Z).
type CubeFace struct {
	Dir, Up mgl32.Vec3
}

var CubeFaces = [6]CubeFace{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, -1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, -1, 0}},
}

// CubeViewProjs returns the six face view-projections of a 90 degree cube
// capture centred on eye.
func CubeViewProjs(eye mgl32.Vec3, near, far float32) [6]mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, near, far)
	var out [6]mgl32.Mat4
	for i, f := range CubeFaces {
		out[i] = proj.Mul4(mgl32.LookAtV(eye, eye.Add(f.Dir), f.Up))
	}
	return out
}

// DirectionLightViewProj builds the fixed-size orthographic light frustum
// centred on the origin, looking along dir.
func DirectionLightViewProj(dir mgl32.Vec3, cfg config.ShadowConfig) mgl32.Mat4 {
	if dir.LenSqr() == 0 {
		dir = mgl32.Vec3{0, -1, 0}
	}
	dir = dir.Normalize()
	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(dir.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	eye := dir.Mul(-cfg.DirDistance)
	view := mgl32.LookAtV(eye, mgl32.Vec3{}, up)
	e := cfg.DirHalfExtent
	return mgl32.Ortho(-e, e, -e, e, cfg.DirNear, cfg.DirFar).Mul4(view)
}

// AssignShadowSlots hands out shadow-map slots for this frame. Every light
// is reset to NoShadow, then the first MaxPoint shadow-casting point lights
// and the first MaxDirection shadow-casting direction lights, in iteration
// order, get slots 0, 1, ... and their light-space matrices. Lights past the
// pool size stay unshadowed, as do direction lights past
// config.MaxDirectionLights, which the lighting pass ignores. With shadows disabled nothing is assigned.
func AssignShadowSlots(points []PointLight, dirs []DirectionLight, cfg config.ShadowConfig) (usedPoint, usedDir int) {
	for i := range points {
		points[i].ShadowIndex = NoShadow
		if !cfg.Enabled || !points[i].CastShadow || usedPoint >= cfg.MaxPoint {
			continue
		}
		points[i].ShadowIndex = usedPoint
		points[i].ViewProjs = CubeViewProjs(points[i].Position, cfg.PointNear, cfg.PointFar)
		usedPoint++
	}
	for i := range dirs {
		dirs[i].ShadowIndex = NoShadow
		// Only the first MaxDirectionLights are lit, so later ones never
		// need a map.
		if i >= config.MaxDirectionLights {
			continue
		}
		if !cfg.Enabled || !dirs[i].CastShadow || usedDir >= cfg.MaxDirection {
			continue
		}
		dirs[i].ShadowIndex = usedDir
		dirs[i].ViewProj = DirectionLightViewProj(dirs[i].Direction, cfg)
		usedDir++
	}
	return usedPoint, usedDir
}
