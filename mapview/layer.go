package mapview

import (
	"github.com/goccy/go-json"

	"github.com/protoarbol/catastro/trees"
)

// Weights for density points. Poor trees weigh more so stressed stands stand
// out at low zoom.
const (
	PoorWeight    = 0.8
	DefaultWeight = 0.5
)

// DensityPoint is one weighted point of the heat layer.
type DensityPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
}

// Marker is one clickable tree on the marker layer.
type Marker struct {
	Key    string  `json:"key"`
	ID     int64   `json:"id_arbol,omitempty"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Label  string  `json:"label"`
	Health string  `json:"estado"`
	Color  string  `json:"color"`
}

// Marker colours by health state.
const (
	ColorDead    = "#dc2626"
	ColorRegular = "#dcd926"
	ColorPoor    = "#d97706"
	ColorHealthy = "#16a34a"
)

// HealthColor returns the marker colour for a raw health value. Unknown
// values are drawn as healthy.
func HealthColor(raw string) string {
	switch trees.Classify(raw) {
	case trees.Dead:
		return ColorDead
	case trees.Regular:
		return ColorRegular
	case trees.Poor:
		return ColorPoor
	}
	return ColorHealthy
}

// HeatOptions are passed through to the density renderer.
type HeatOptions struct {
	Radius     float64 `json:"radius"`
	Blur       float64 `json:"blur"`
	MaxZoom    float64 `json:"max_zoom"`
	MinOpacity float64 `json:"min_opacity"`
}

// DefaultHeatOptions matches the web map's heat layer.
func DefaultHeatOptions() HeatOptions {
	return HeatOptions{Radius: 24, Blur: 18, MaxZoom: 17, MinOpacity: 0.3}
}

// Settings controls Build.
type Settings struct {
	Threshold    float64
	LegacyHealth bool
	Heat         HeatOptions
}

// DefaultSettings returns the stock map settings.
func DefaultSettings() Settings {
	return Settings{Threshold: DefaultHeatmapThreshold, Heat: DefaultHeatOptions()}
}

type projectOptions struct {
	legacyHealth bool
}

// ProjectOption configures Project and BuildMarkers.
type ProjectOption func(*projectOptions)

// WithLegacyHealth reads estado_actual when estado is empty.
func WithLegacyHealth(on bool) ProjectOption {
	return func(o *projectOptions) {
		o.legacyHealth = on
	}
}

func resolve(opts []ProjectOption) projectOptions {
	var o projectOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Project converts records into density points. Records without a valid
// position are skipped; the result is never nil.
func Project(records []trees.Tree, opts ...ProjectOption) []DensityPoint {
	o := resolve(opts)
	points := make([]DensityPoint, 0, len(records))
	for _, r := range records {
		if !r.HasValidPosition() {
			continue
		}
		weight := DefaultWeight
		if trees.IsPoor(r.HealthValue(o.legacyHealth)) {
			weight = PoorWeight
		}
		points = append(points, DensityPoint{Lat: r.Lat, Lng: r.Lng, Weight: weight})
	}
	return points
}

// BuildMarkers converts records into markers keyed by record key.
func BuildMarkers(records []trees.Tree, opts ...ProjectOption) []Marker {
	o := resolve(opts)
	markers := make([]Marker, 0, len(records))
	for _, r := range records {
		if !r.HasValidPosition() {
			continue
		}
		health := r.HealthValue(o.legacyHealth)
		label := health
		if label == "" {
			label = "Estado desconocido"
		}
		markers = append(markers, Marker{
			Key:    r.Key(),
			ID:     r.ID,
			Lat:    r.Lat,
			Lng:    r.Lng,
			Label:  r.CommonName + " · " + label,
			Health: health,
			Color:  HealthColor(health),
		})
	}
	return markers
}

// Layer is everything a rendering surface needs for one frame.
type Layer struct {
	Mode    Mode           `json:"mode"`
	Zoom    float64        `json:"zoom"`
	Count   int            `json:"count"`
	Markers []Marker       `json:"markers,omitempty"`
	Points  []DensityPoint `json:"points,omitempty"`
	Heat    *HeatOptions   `json:"heat,omitempty"`
}

// MarshalJSON always writes the slice of the active mode, as [] when empty,
// and leaves out the other one.
func (l Layer) MarshalJSON() ([]byte, error) {
	wire := struct {
		Mode    Mode            `json:"mode"`
		Zoom    float64         `json:"zoom"`
		Count   int             `json:"count"`
		Markers *[]Marker       `json:"markers,omitempty"`
		Points  *[]DensityPoint `json:"points,omitempty"`
		Heat    *HeatOptions    `json:"heat,omitempty"`
	}{Mode: l.Mode, Zoom: l.Zoom, Count: l.Count, Heat: l.Heat}

	markers, points := l.Markers, l.Points
	if l.Mode == Heatmap {
		if points == nil {
			points = []DensityPoint{}
		}
		wire.Points = &points
		if len(markers) > 0 {
			wire.Markers = &markers
		}
	} else {
		if markers == nil {
			markers = []Marker{}
		}
		wire.Markers = &markers
		if len(points) > 0 {
			wire.Points = &points
		}
	}
	return json.Marshal(wire)
}

// Build selects the mode for zoom and projects records accordingly.
func Build(records []trees.Tree, zoom float64, s Settings) Layer {
	threshold := s.Threshold
	if threshold == 0 {
		threshold = DefaultHeatmapThreshold
	}
	opts := []ProjectOption{WithLegacyHealth(s.LegacyHealth)}
	layer := Layer{Mode: SelectMode(zoom, threshold), Zoom: zoom}
	if layer.Mode == Heatmap {
		heat := s.Heat
		layer.Points = Project(records, opts...)
		layer.Heat = &heat
		layer.Count = len(layer.Points)
		return layer
	}
	layer.Markers = BuildMarkers(records, opts...)
	layer.Count = len(layer.Markers)
	return layer
}
