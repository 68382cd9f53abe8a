package trees

import (
	"math"
	"math/rand/v2"
)

type syntheticSpecies struct {
	common, scientific, family string
}

var syntheticCatalog = []syntheticSpecies{
	{"Peumo", "Cryptocarya alba", "Lauraceae"},
	{"Boldo", "Peumus boldus", "Monimiaceae"},
	{"Quillay", "Quillaja saponaria", "Quillajaceae"},
	{"Maitén", "Maytenus boaria", "Celastraceae"},
	{"Araucaria", "Araucaria araucana", "Araucariaceae"},
	{"Arrayán", "Luma apiculata", "Myrtaceae"},
	{"Coigüe", "Nothofagus dombeyi", "Nothofagaceae"},
}

// Synthetic returns n deterministic records scattered south-west of
// (-36.82, -73.04), for load testing the map and dashboard.
func Synthetic(n int, seed uint64) []Tree {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]Tree, 0, n)
	for i := 0; i < n; i++ {
		sp := syntheticCatalog[rng.IntN(len(syntheticCatalog))]
		height := math.Round((rng.Float64()*15+2)*10) / 10
		out = append(out, Tree{
			ID:             int64(2000 + i),
			CommonName:     sp.common,
			ScientificName: sp.scientific,
			Species:        sp.family,
			Age:            AgeOf(rng.IntN(80) + 5),
			Height:         &height,
			Health:         string(HealthStates[rng.IntN(len(HealthStates))]),
			Lat:            -36.82 - rng.Float64()*0.02,
			Lng:            -73.04 - rng.Float64()*0.02,
			Description:    "Árbol de prueba para estrés de carga de datos.",
		})
	}
	return out
}
