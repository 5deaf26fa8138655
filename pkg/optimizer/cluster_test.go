package optimizer

import (
	"math"
	"testing"

	geojson "github.com/paulmach/go.geojson"
)

func pointFeature(lng, lat float64, props map[string]interface{}) *geojson.Feature {
	f := geojson.NewPointFeature([]float64{lng, lat})
	for k, v := range props {
		f.SetProperty(k, v)
	}
	return f
}

func TestClusterNearbyPoints(t *testing.T) {
	// Five points within roughly 10m of each other.
	base := []float64{-122.4194, 37.7749}
	var features []*geojson.Feature
	for i := 0; i < 5; i++ {
		features = append(features, pointFeature(base[0], base[1]+float64(i)*0.00001, nil))
	}

	out := ClusterFeatures(features, 50)

	if len(out) != 1 {
		t.Fatalf("Expected 1 cluster, got %d features", len(out))
	}
	cluster := out[0]
	if v, err := cluster.PropertyBool("cluster"); err != nil || !v {
		t.Error("Expected cluster property to be true")
	}
	if count, err := cluster.PropertyInt("point_count"); err != nil || count != 5 {
		t.Errorf("Expected point_count 5, got %d (err %v)", count, err)
	}
	wantLat := base[1] + 2*0.00001
	if math.Abs(cluster.Geometry.Point[1]-wantLat) > 1e-12 {
		t.Errorf("Expected centroid lat %v, got %v", wantLat, cluster.Geometry.Point[1])
	}
	if cluster.Geometry.Point[0] != base[0] {
		t.Errorf("Expected centroid lng %v, got %v", base[0], cluster.Geometry.Point[0])
	}
}

func TestClusterPartitionsInput(t *testing.T) {
	var features []*geojson.Feature
	// Group of three near the origin.
	for i := 0; i < 3; i++ {
		features = append(features, pointFeature(float64(i)*0.0001, 0, nil))
	}
	// Pair far away.
	features = append(features, pointFeature(10, 10, nil))
	features = append(features, pointFeature(10.0001, 10, nil))
	// Isolated point.
	features = append(features, pointFeature(50, 50, nil))
	// A line feature rides along untouched.
	line := geojson.NewLineStringFeature([][]float64{{0, 0}, {1, 1}})
	features = append(features, line)

	out := ClusterFeatures(features, 100)

	total := 0
	lines := 0
	for _, f := range out {
		if f.Geometry.Type != geojson.GeometryPoint {
			lines++
			continue
		}
		if count, err := f.PropertyInt("point_count"); err == nil {
			total += count
		} else {
			total++ // standalone point counts as one
		}
	}
	if total != 6 {
		t.Errorf("Expected point_count partition to sum to 6, got %d", total)
	}
	if lines != 1 {
		t.Errorf("Expected 1 non-point feature to pass through, got %d", lines)
	}
	for _, f := range out {
		if f == line {
			return
		}
	}
	t.Error("Line feature was not passed through unmodified")
}

func TestClusterNumericAggregates(t *testing.T) {
	features := []*geojson.Feature{
		pointFeature(0, 0, map[string]interface{}{"value": 10.0, "name": "a"}),
		pointFeature(0.00001, 0, map[string]interface{}{"value": 20.0}),
		pointFeature(0.00002, 0, map[string]interface{}{"name": "c"}), // no value: excluded, not zero
	}

	out := ClusterFeatures(features, 50)
	if len(out) != 1 {
		t.Fatalf("Expected 1 cluster, got %d", len(out))
	}
	cluster := out[0]

	tests := []struct {
		prop string
		want float64
	}{
		{"value_sum", 30},
		{"value_avg", 15},
		{"value_min", 10},
		{"value_max", 20},
	}
	for _, tt := range tests {
		got, err := cluster.PropertyFloat64(tt.prop)
		if err != nil {
			t.Errorf("Missing aggregate %s: %v", tt.prop, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Expected %s = %v, got %v", tt.prop, tt.want, got)
		}
	}
	if _, err := cluster.PropertyFloat64("name_sum"); err == nil {
		t.Error("Expected no aggregate for non-numeric property")
	}
}

func TestStandalonePointNotWrapped(t *testing.T) {
	f := pointFeature(0, 0, map[string]interface{}{"value": 1.0})
	out := ClusterFeatures([]*geojson.Feature{f}, 50)

	if len(out) != 1 {
		t.Fatalf("Expected 1 feature, got %d", len(out))
	}
	if out[0] != f {
		t.Error("Expected the original feature back, not a wrapper")
	}
	if _, err := out[0].PropertyBool("cluster"); err == nil {
		t.Error("Standalone point should not gain a cluster property")
	}
}

func TestClusterZeroRadiusPassesThrough(t *testing.T) {
	features := []*geojson.Feature{pointFeature(0, 0, nil), pointFeature(0, 0, nil)}
	out := ClusterFeatures(features, 0)
	if len(out) != 2 {
		t.Fatalf("Expected passthrough with zero radius, got %d features", len(out))
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// 0.001 degrees of longitude at the equator is about 111.2m.
	d := haversineM([]float64{0, 0}, []float64{0.001, 0})
	if math.Abs(d-111.19) > 1.0 {
		t.Errorf("Expected ~111.19m, got %v", d)
	}
}
