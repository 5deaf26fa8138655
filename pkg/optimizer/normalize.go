package optimizer

import (
	"encoding/json"
	"log"

	geojson "github.com/paulmach/go.geojson"
)

// Normalize coerces an untrusted layer payload into a FeatureCollection.
// The backend services return a proper collection, a bare feature array, or
// a single feature depending on the endpoint; anything else becomes an
// empty collection so a bad upstream response never reaches the transform
// passes.
func Normalize(raw []byte) *geojson.FeatureCollection {
	if fc, err := geojson.UnmarshalFeatureCollection(raw); err == nil {
		if fc.Type == "FeatureCollection" || len(fc.Features) > 0 {
			fc.Type = "FeatureCollection"
			if fc.Features == nil {
				fc.Features = []*geojson.Feature{}
			}
			return fc
		}
	}

	var features []*geojson.Feature
	if err := json.Unmarshal(raw, &features); err == nil && len(features) > 0 {
		fc := geojson.NewFeatureCollection()
		for _, f := range features {
			if f != nil && f.Geometry != nil {
				fc.AddFeature(f)
			}
		}
		if len(fc.Features) > 0 {
			return fc
		}
	}

	if f, err := geojson.UnmarshalFeature(raw); err == nil && f.Geometry != nil {
		return geojson.NewFeatureCollection().AddFeature(f)
	}

	log.Printf("Discarding malformed layer payload (%d bytes)", len(raw))
	return geojson.NewFeatureCollection()
}
