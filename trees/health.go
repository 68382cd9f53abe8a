package trees

import "strings"

// HealthState is the sanitary condition recorded for a tree.
type HealthState string

const (
	Healthy HealthState = "Saludable"
	Regular HealthState = "Regular"
	Poor    HealthState = "Malo"
	Dead    HealthState = "Muerto"
	// Unknown collects missing or unrecognised values so they are never dropped.
	Unknown HealthState = "Desconocido"
)

// HealthStates lists the states a user may pick, in form order.
var HealthStates = []HealthState{Healthy, Regular, Poor, Dead}

var healthAliases = map[string]HealthState{
	"saludable": Healthy,
	"healthy":   Healthy,
	"regular":   Regular,
	"malo":      Poor,
	"poor":      Poor,
	"muerto":    Dead,
	"dead":      Dead,
}

// ParseHealth maps a raw health string onto a known state, case-insensitively.
// Anything else is Unknown.
func ParseHealth(raw string) HealthState {
	if state, ok := healthAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return state
	}
	return Unknown
}

// Known reports whether h is one of the four selectable states.
func (h HealthState) Known() bool {
	switch h {
	case Healthy, Regular, Poor, Dead:
		return true
	}
	return false
}

// IsPoor reports whether a raw health value indicates the Poor state. The map
// used a substring test, so values such as "Malo (plaga)" count as well.
func IsPoor(raw string) bool {
	s := strings.ToLower(raw)
	return strings.Contains(s, "malo") || strings.TrimSpace(s) == "poor"
}

// Classify resolves a raw health value the way marker colouring does: by
// substring, dead first, so compound notes still land in a bucket.
func Classify(raw string) HealthState {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "muerto") || strings.Contains(s, "dead"):
		return Dead
	case strings.Contains(s, "regular"):
		return Regular
	case IsPoor(raw):
		return Poor
	case strings.Contains(s, "saludable") || strings.Contains(s, "healthy"):
		return Healthy
	}
	return Unknown
}
