// Package filter narrows the working set before it reaches the map.
package filter

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/protoarbol/catastro/trees"
)

// Criteria selects records. Empty fields match everything.
type Criteria struct {
	// Species matches as a case-insensitive substring of especie or nom_arbol.
	Species string `json:"species,omitempty"`
	// Health matches estado exactly, ignoring case.
	Health string `json:"estado,omitempty"`
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return c.Species == "" && c.Health == ""
}

type options struct {
	legacyHealth bool
}

// Option configures Apply.
type Option func(*options)

// WithLegacyHealth makes records without estado match on estado_actual.
func WithLegacyHealth(on bool) Option {
	return func(o *options) {
		o.legacyHealth = on
	}
}

// Apply returns the records matching c, in input order. The input slice is
// not modified and the result never aliases it.
func Apply(records []trees.Tree, c Criteria, opts ...Option) []trees.Tree {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	out := make([]trees.Tree, 0, len(records))
	if c.IsZero() {
		return append(out, records...)
	}

	fold := cases.Fold()
	species := fold.String(c.Species)
	health := fold.String(c.Health)

	for _, r := range records {
		if species != "" &&
			!strings.Contains(fold.String(r.Species), species) &&
			!strings.Contains(fold.String(r.CommonName), species) {
			continue
		}
		if health != "" && fold.String(r.HealthValue(o.legacyHealth)) != health {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SpeciesOptions returns the distinct non-empty especie values, sorted, for
// the species picker.
func SpeciesOptions(records []trees.Tree) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, r := range records {
		if r.Species == "" {
			continue
		}
		if _, ok := seen[r.Species]; ok {
			continue
		}
		seen[r.Species] = struct{}{}
		out = append(out, r.Species)
	}
	sort.Strings(out)
	return out
}
