package optimizer

import geojson "github.com/paulmach/go.geojson"

// LimitFeatures caps a feature list at maxFeatures using fixed-stride
// sampling, so the kept features stay spread across the whole input instead
// of truncation silently dropping one geographic region. Input already
// within budget is returned unchanged, not re-sampled.
func LimitFeatures(features []*geojson.Feature, maxFeatures int) []*geojson.Feature {
	if maxFeatures <= 0 || len(features) <= maxFeatures {
		return features
	}

	step := (len(features) + maxFeatures - 1) / maxFeatures
	out := make([]*geojson.Feature, 0, maxFeatures)
	for i := 0; i < len(features) && len(out) < maxFeatures; i += step {
		out = append(out, features[i])
	}
	return out
}
