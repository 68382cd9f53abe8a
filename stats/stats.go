// Package stats computes the dashboard summary of the working set.
package stats

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gonum.org/v1/gonum/stat"

	"github.com/protoarbol/catastro/trees"
)

// UnknownKey labels records with no species or health.
const UnknownKey = string(trees.Unknown)

// Summary is the aggregate shown on the dashboard.
type Summary struct {
	BySpecies  map[string]int `json:"by_species"`
	ByHealth   map[string]int `json:"by_health"`
	Total      int            `json:"total"`
	AverageAge float64        `json:"average_age"`
}

// Bucket is one bar of a chart.
type Bucket struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

// SpeciesKey normalises a species value for grouping: trimmed, first letter
// upper case, the rest lower case. Blank values group under UnknownKey.
func SpeciesKey(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return UnknownKey
	}
	_, size := utf8.DecodeRuneInString(s)
	return upper.String(s[:size]) + lower.String(s[size:])
}

// HealthKey groups by the raw estado value; only blanks are folded.
func HealthKey(raw string) string {
	if raw == "" {
		return UnknownKey
	}
	return raw
}

// Aggregate summarises records. Every record is counted once in each map, so
// both maps sum to Total. Ages that are absent or non-numeric are left out of
// the average; the average is 0 when no record has a usable age.
func Aggregate(records []trees.Tree) Summary {
	s := Summary{
		BySpecies: make(map[string]int),
		ByHealth:  make(map[string]int),
		Total:     len(records),
	}
	ages := make([]float64, 0, len(records))
	for _, r := range records {
		s.BySpecies[SpeciesKey(r.Species)]++
		s.ByHealth[HealthKey(r.Health)]++
		if years, ok := r.Age.Years(); ok {
			ages = append(ages, float64(years))
		}
	}
	if len(ages) > 0 {
		s.AverageAge = stat.Mean(ages, nil)
	}
	return s
}

func series(m map[string]int) []Bucket {
	out := make([]Bucket, 0, len(m))
	for name, count := range m {
		out = append(out, Bucket{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SpeciesSeries returns the species counts sorted by name.
func (s Summary) SpeciesSeries() []Bucket {
	return series(s.BySpecies)
}

// HealthSeries returns the health counts sorted by name.
func (s Summary) HealthSeries() []Bucket {
	return series(s.ByHealth)
}
