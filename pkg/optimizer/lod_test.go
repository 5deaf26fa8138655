package optimizer

import (
	"testing"

	geojson "github.com/paulmach/go.geojson"
)

func TestSelectStrategyBrackets(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		zoom float64
		want Strategy
	}{
		{0, Strategy{ClusterRadiusM: 100, SimplifyTolerance: 0.01}},
		{9.9, Strategy{ClusterRadiusM: 100, SimplifyTolerance: 0.01}},
		{10, Strategy{ClusterRadiusM: 50, SimplifyTolerance: 0.005}},
		{12.5, Strategy{ClusterRadiusM: 50, SimplifyTolerance: 0.005}},
		{13, Strategy{SimplifyTolerance: 0.001, MaxFeatures: cfg.MaxFeatures}},
		{15.99, Strategy{SimplifyTolerance: 0.001, MaxFeatures: cfg.MaxFeatures}},
		{16, Strategy{}},
		{22, Strategy{}},
	}

	for _, tt := range tests {
		got := SelectStrategy(tt.zoom, cfg)
		if got != tt.want {
			t.Errorf("zoom %v: expected %+v, got %+v", tt.zoom, tt.want, got)
		}
	}
}

func TestStrategyNoop(t *testing.T) {
	if !SelectStrategy(16, DefaultConfig()).Noop() {
		t.Error("Expected the close-zoom strategy to be a no-op")
	}
	if SelectStrategy(8, DefaultConfig()).Noop() {
		t.Error("Expected the far-zoom strategy to do work")
	}
}

func TestStrategyApplyOrder(t *testing.T) {
	// Two dense point groups plus a noisy line. The far-zoom strategy must
	// cluster the points, simplify the line, and leave the input untouched.
	fc := geojson.NewFeatureCollection()
	for i := 0; i < 4; i++ {
		fc.AddFeature(pointFeature(0, float64(i)*0.00001, nil))
	}
	for i := 0; i < 3; i++ {
		fc.AddFeature(pointFeature(10, 10+float64(i)*0.00001, nil))
	}
	fc.AddFeature(geojson.NewLineStringFeature([][]float64{
		{0, 0}, {0.0005, 0.0005}, {0.001, 0.001},
	}))
	inputLen := len(fc.Features)

	out := SelectStrategy(5, DefaultConfig()).Apply(fc)

	if len(fc.Features) != inputLen {
		t.Fatal("Apply mutated the input collection")
	}
	if len(out.Features) != 3 {
		t.Fatalf("Expected 2 clusters and 1 line, got %d features", len(out.Features))
	}

	clusters := 0
	for _, f := range out.Features {
		if f.Geometry.Type == geojson.GeometryPoint {
			if v, err := f.PropertyBool("cluster"); err == nil && v {
				clusters++
			}
			continue
		}
		if f.Geometry.Type != geojson.GeometryLineString {
			t.Fatalf("Unexpected geometry %s", f.Geometry.Type)
		}
		if len(f.Geometry.LineString) != 2 {
			t.Errorf("Expected the line simplified to 2 points, got %d", len(f.Geometry.LineString))
		}
	}
	if clusters != 2 {
		t.Errorf("Expected 2 cluster features, got %d", clusters)
	}
}

func TestStrategyApplyCapsFeatures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFeatures = 100

	fc := geojson.NewFeatureCollection()
	fc.Features = indexedPoints(1000)

	out := SelectStrategy(14, cfg).Apply(fc)
	if len(out.Features) != 100 {
		t.Errorf("Expected 100 features after the cap, got %d", len(out.Features))
	}
}
