package mapview

import (
	"io"

	geojson "github.com/paulmach/go.geojson"
)

// FeatureCollection converts a layer into GeoJSON points. Marker features
// carry key, label, estado and color; density features carry weight.
func FeatureCollection(layer Layer) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range layer.Markers {
		f := geojson.NewPointFeature([]float64{m.Lng, m.Lat})
		if m.ID != 0 {
			f.ID = m.ID
		}
		f.SetProperty("key", m.Key)
		f.SetProperty("label", m.Label)
		f.SetProperty("estado", m.Health)
		f.SetProperty("color", m.Color)
		fc.AddFeature(f)
	}
	for _, p := range layer.Points {
		f := geojson.NewPointFeature([]float64{p.Lng, p.Lat})
		f.SetProperty("weight", p.Weight)
		fc.AddFeature(f)
	}
	return fc
}

// WriteGeoJSON encodes the layer as a FeatureCollection.
func WriteGeoJSON(w io.Writer, layer Layer) error {
	data, err := FeatureCollection(layer).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
