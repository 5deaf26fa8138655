package optimizer

import (
	"math"

	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"
)

// Spherical-Earth approximation radius, in meters.
const earthRadiusM = 6371000.0

// ClusterFeatures merges Point features within radiusM meters of a seed
// point into synthesized cluster features. The scan is greedy and follows
// input order: each unprocessed point seeds a cluster and absorbs every
// remaining unprocessed point within the radius, so every feature lands in
// exactly one cluster or stands alone. Non-Point features pass through in
// place and are never merged.
//
// This is O(n²) on purpose: by the time clustering runs the collection has
// already been capped below the feature budget. Don't feed it unbounded
// input without putting a spatial index in front.
func ClusterFeatures(features []*geojson.Feature, radiusM float64) []*geojson.Feature {
	if radiusM <= 0 || len(features) == 0 {
		return features
	}

	out := make([]*geojson.Feature, 0, len(features))
	processed := make([]bool, len(features))

	for i, f := range features {
		if processed[i] {
			continue
		}
		processed[i] = true

		if !isPoint(f) {
			out = append(out, f)
			continue
		}

		members := []*geojson.Feature{f}
		for j := i + 1; j < len(features); j++ {
			if processed[j] || !isPoint(features[j]) {
				continue
			}
			if haversineM(f.Geometry.Point, features[j].Geometry.Point) <= radiusM {
				members = append(members, features[j])
				processed[j] = true
			}
		}

		// A cluster of one is the original feature, not a wrapper.
		if len(members) == 1 {
			out = append(out, f)
			continue
		}
		out = append(out, buildCluster(members))
	}

	return out
}

func isPoint(f *geojson.Feature) bool {
	return f != nil && f.Geometry != nil &&
		f.Geometry.Type == geojson.GeometryPoint && len(f.Geometry.Point) >= 2
}

// buildCluster synthesizes the aggregate feature for two or more members:
// centroid at the arithmetic mean of member coordinates, plus
// sum/avg/min/max rollups for every numeric property observed on any
// member. Members missing a property are excluded from that property's
// aggregates rather than counted as zero.
func buildCluster(members []*geojson.Feature) *geojson.Feature {
	var sumLng, sumLat float64
	sums := make(map[string]float64)
	mins := make(map[string]float64)
	maxs := make(map[string]float64)
	counts := make(map[string]int)

	for _, m := range members {
		sumLng += m.Geometry.Point[0]
		sumLat += m.Geometry.Point[1]
		for k, v := range m.Properties {
			n, ok := numericValue(v)
			if !ok {
				continue
			}
			if counts[k] == 0 || n < mins[k] {
				mins[k] = n
			}
			if counts[k] == 0 || n > maxs[k] {
				maxs[k] = n
			}
			sums[k] += n
			counts[k]++
		}
	}

	n := float64(len(members))
	cf := geojson.NewPointFeature([]float64{sumLng / n, sumLat / n})
	cf.SetProperty("cluster", true)
	cf.SetProperty("cluster_id", uuid.NewString())
	cf.SetProperty("point_count", len(members))
	for k, s := range sums {
		cf.SetProperty(k+"_sum", s)
		cf.SetProperty(k+"_avg", s/float64(counts[k]))
		cf.SetProperty(k+"_min", mins[k])
		cf.SetProperty(k+"_max", maxs[k])
	}
	return cf
}

// numericValue widens any of the number representations that show up in
// decoded GeoJSON properties. JSON decoding yields float64, but collections
// built in-process carry native int/float fields too.
func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// haversineM is the great-circle distance between two [lng, lat] pairs.
func haversineM(a, b []float64) float64 {
	lat1 := a[1] * math.Pi / 180
	lat2 := b[1] * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b[0] - a[0]) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}
