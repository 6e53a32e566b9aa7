package main

import (
	"fmt"
	"strings"

	"pbr-engine/internal/config"
	"pbr-engine/internal/frame"
)

// hud formats frame stats into the window title once per second.
type hud struct {
	base   string
	since  float64
	frames int
}

func newHUD(base string) *hud {
	return &hud{base: base, since: -1}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Tick counts a frame and returns a new title when a second has passed.
func (h *hud) Tick(now float64, s frame.Stats, rt config.Runtime) (string, bool) {
	if h.since < 0 {
		h.since = now
	}
	h.frames++
	elapsed := now - h.since
	if elapsed < 1 {
		return "", false
	}
	fps := float64(h.frames) / elapsed
	h.frames = 0
	h.since = now
	return formatTitle(h.base, fps, s, rt), true
}

func formatTitle(base string, fps float64, s frame.Stats, rt config.Runtime) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | FPS: %.0f | items %d", base, fps, s.Items)
	fmt.Fprintf(&b, " | lights %d+%d (shadowed %d/%d, clustered %d)",
		s.PointLights, s.DirectionLights, s.ShadowedPoint, s.ShadowedDirection, s.ClusteredLights)
	if s.ClusterOverflow > 0 {
		fmt.Fprintf(&b, " | overflow %d/%d", s.ClusterOverflow, s.ClusterCapacity)
	}
	if s.ClusterCellCapped > 0 {
		fmt.Fprintf(&b, " | cell cap dropped %d", s.ClusterCellCapped)
	}
	fmt.Fprintf(&b, " | shadows %s ssao %s taa %.2f", onOff(rt.Shadows), onOff(rt.SSAO), rt.TAABlendRatio)
	return b.String()
}
