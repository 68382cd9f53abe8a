package trees

import (
	"math"
	"strconv"
	"strings"
)

// Tree is one catalogued tree. JSON names follow the arboles table so that
// payloads written by the web client and the API server are interchangeable.
type Tree struct {
	ID             int64    `json:"id_arbol,omitempty" yaml:"id_arbol,omitempty"`
	PendingID      string   `json:"pending_id,omitempty" yaml:"-"`
	CommonName     string   `json:"nom_arbol" yaml:"nom_arbol"`
	ScientificName string   `json:"nom_cientifico,omitempty" yaml:"nom_cientifico,omitempty"`
	Species        string   `json:"especie,omitempty" yaml:"especie,omitempty"`
	Age            Age      `json:"edad" yaml:"edad"`
	Height         *float64 `json:"altura,omitempty" yaml:"altura,omitempty"`
	Health         string   `json:"estado" yaml:"estado"`
	LegacyHealth   string   `json:"estado_actual,omitempty" yaml:"estado_actual,omitempty"`
	Lat            float64  `json:"lat" yaml:"lat"`
	Lng            float64  `json:"lng" yaml:"lng"`
	Description    string   `json:"descripcion,omitempty" yaml:"descripcion,omitempty"`
	Image          *string  `json:"imagen" yaml:"imagen,omitempty"`
}

// Key returns the cache key of the record: the server id once persisted,
// the client-assigned pending id before that.
func (t Tree) Key() string {
	if t.PendingID != "" {
		return t.PendingID
	}
	return KeyOf(t.ID)
}

// KeyOf returns the cache key for a persisted id.
func KeyOf(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Pending reports whether the record has not been confirmed by the store yet.
func (t Tree) Pending() bool {
	return t.PendingID != ""
}

// HealthValue returns the raw health string. With legacy set, records that
// only carry estado_actual (offline datasets) report that value instead.
func (t Tree) HealthValue(legacy bool) string {
	if t.Health == "" && legacy {
		return t.LegacyHealth
	}
	return t.Health
}

// HasValidPosition reports whether lat/lng are finite and inside the WGS84 range.
func (t Tree) HasValidPosition() bool {
	if math.IsNaN(t.Lat) || math.IsInf(t.Lat, 0) || math.IsNaN(t.Lng) || math.IsInf(t.Lng, 0) {
		return false
	}
	return t.Lat >= -90 && t.Lat <= 90 && t.Lng >= -180 && t.Lng <= 180
}

// Normalized trims free-text fields. When speciesFallback is set an empty
// species takes the common name, as the offline client did.
func (t Tree) Normalized(speciesFallback bool) Tree {
	t.CommonName = strings.TrimSpace(t.CommonName)
	t.ScientificName = strings.TrimSpace(t.ScientificName)
	t.Species = strings.TrimSpace(t.Species)
	t.Health = strings.TrimSpace(t.Health)
	t.Description = strings.TrimSpace(t.Description)
	if t.Species == "" && speciesFallback {
		t.Species = t.CommonName
	}
	return t
}

// Clone returns a copy that shares no pointers with t.
func (t Tree) Clone() Tree {
	if t.Height != nil {
		h := *t.Height
		t.Height = &h
	}
	if t.Image != nil {
		img := *t.Image
		t.Image = &img
	}
	return t
}

// Edit carries the fields a user changed in the edit form. Nil fields keep
// the stored value; position is not editable.
type Edit struct {
	CommonName     *string  `json:"nom_arbol,omitempty"`
	ScientificName *string  `json:"nom_cientifico,omitempty"`
	Species        *string  `json:"especie,omitempty"`
	Age            *Age     `json:"edad,omitempty"`
	Height         *float64 `json:"altura,omitempty"`
	Health         *string  `json:"estado,omitempty"`
	Description    *string  `json:"descripcion,omitempty"`
	Image          *string  `json:"imagen,omitempty"`
}

// Apply merges the edit onto base and returns the result. base is not modified.
func (e Edit) Apply(base Tree) Tree {
	out := base.Clone()
	if e.CommonName != nil {
		out.CommonName = *e.CommonName
	}
	if e.ScientificName != nil {
		out.ScientificName = *e.ScientificName
	}
	if e.Species != nil {
		out.Species = *e.Species
	}
	if e.Age != nil {
		out.Age = *e.Age
	}
	if e.Height != nil {
		h := *e.Height
		out.Height = &h
	}
	if e.Health != nil {
		out.Health = *e.Health
	}
	if e.Description != nil {
		out.Description = *e.Description
	}
	if e.Image != nil {
		img := *e.Image
		out.Image = &img
	}
	return out
}

// IsZero reports whether the edit changes nothing.
func (e Edit) IsZero() bool {
	return e.CommonName == nil && e.ScientificName == nil && e.Species == nil &&
		e.Age == nil && e.Height == nil && e.Health == nil &&
		e.Description == nil && e.Image == nil
}
