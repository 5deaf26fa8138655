package optimizer

import geojson "github.com/paulmach/go.geojson"

// Strategy is the combination of passes chosen for a zoom level. A zero
// field disables that pass.
type Strategy struct {
	ClusterRadiusM    float64
	SimplifyTolerance float64
	MaxFeatures       int
}

// SelectStrategy is a pure function of zoom mapped through fixed
// breakpoints. Far out, clustering dominates with coarse simplification;
// mid-range the budget cap takes over; past zoom 16 the data is drawn as-is.
func SelectStrategy(zoom float64, cfg Config) Strategy {
	switch {
	case zoom < 10:
		return Strategy{ClusterRadiusM: 100, SimplifyTolerance: 0.01}
	case zoom < 13:
		return Strategy{ClusterRadiusM: 50, SimplifyTolerance: 0.005}
	case zoom < 16:
		return Strategy{SimplifyTolerance: 0.001, MaxFeatures: cfg.MaxFeatures}
	default:
		return Strategy{}
	}
}

// Apply runs the strategy's passes in their required order: cluster first
// so dense point groups aren't discarded disproportionately by the cap,
// then simplify, then cap. The input collection is not mutated.
func (s Strategy) Apply(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	features := fc.Features

	if s.ClusterRadiusM > 0 {
		features = ClusterFeatures(features, s.ClusterRadiusM)
	}
	if s.SimplifyTolerance > 0 {
		simplified := make([]*geojson.Feature, len(features))
		for i, f := range features {
			simplified[i] = simplifyFeature(f, s.SimplifyTolerance)
		}
		features = simplified
	}
	if s.MaxFeatures > 0 {
		features = LimitFeatures(features, s.MaxFeatures)
	}

	out := geojson.NewFeatureCollection()
	out.Features = features
	return out
}

// Noop reports whether the strategy would leave a collection untouched.
func (s Strategy) Noop() bool {
	return s.ClusterRadiusM <= 0 && s.SimplifyTolerance <= 0 && s.MaxFeatures <= 0
}
