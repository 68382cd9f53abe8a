// Package mapview turns filtered records into what a map surface draws:
// individual markers when zoomed in, weighted density points when zoomed out.
package mapview

import (
	"math"
	"sync"
)

// Mode is the kind of layer a map shows.
type Mode string

const (
	Markers Mode = "markers"
	Heatmap Mode = "heatmap"
)

// DefaultHeatmapThreshold is the zoom level at and above which markers are shown.
const DefaultHeatmapThreshold = 15

// Zoom range and center of the Concepción survey area.
const (
	DefaultMinZoom   = 13
	DefaultMaxZoom   = 19
	DefaultCenterLat = -36.827
	DefaultCenterLng = -73.050
)

// SelectMode returns Heatmap below threshold and Markers otherwise.
func SelectMode(zoom, threshold float64) Mode {
	if zoom < threshold {
		return Heatmap
	}
	return Markers
}

// Viewport tracks zoom-change events and re-evaluates the layer mode on each
// one. Listeners are called when the mode changes.
type Viewport struct {
	mu        sync.Mutex
	threshold float64
	minZoom   float64
	maxZoom   float64
	zoom      float64
	mode      Mode
	listeners []func(zoom float64, mode Mode)
}

// NewViewport returns a viewport at the given zoom. A zero threshold means
// DefaultHeatmapThreshold; a zero zoom range means no clamping.
func NewViewport(zoom, threshold, minZoom, maxZoom float64) *Viewport {
	if threshold == 0 {
		threshold = DefaultHeatmapThreshold
	}
	v := &Viewport{threshold: threshold, minZoom: minZoom, maxZoom: maxZoom}
	v.zoom = v.clamp(zoom)
	v.mode = SelectMode(v.zoom, threshold)
	return v
}

func (v *Viewport) clamp(zoom float64) float64 {
	if v.minZoom == 0 && v.maxZoom == 0 {
		return zoom
	}
	return math.Min(math.Max(zoom, v.minZoom), v.maxZoom)
}

// OnModeChange registers fn for mode transitions.
func (v *Viewport) OnModeChange(fn func(zoom float64, mode Mode)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

// SetZoom handles a zoom-change event and returns the resulting mode.
func (v *Viewport) SetZoom(zoom float64) Mode {
	v.mu.Lock()
	v.zoom = v.clamp(zoom)
	mode := SelectMode(v.zoom, v.threshold)
	changed := mode != v.mode
	v.mode = mode
	current := v.zoom
	listeners := append([]func(float64, Mode){}, v.listeners...)
	v.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(current, mode)
		}
	}
	return mode
}

// Zoom returns the current (clamped) zoom.
func (v *Viewport) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// Mode returns the current layer mode.
func (v *Viewport) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}
