package optimizer

import (
	"math"

	geojson "github.com/paulmach/go.geojson"
)

// SimplifyGeometry reduces the vertex count of line and polygon geometries
// with the Douglas-Peucker algorithm. The first and last vertex of every
// line and ring are preserved exactly, and every dropped vertex was within
// tolerance of the chord between its retained neighbors. Tolerance is in
// raw coordinate degrees while cluster radii are metric; the mismatch is
// inherited behavior, acceptable at the regional scales this runs at.
//
// Point geometries and unrecognized types pass through untouched. The input
// geometry is never mutated.
func SimplifyGeometry(g *geojson.Geometry, tolerance float64) *geojson.Geometry {
	if g == nil || tolerance <= 0 {
		return g
	}
	switch g.Type {
	case geojson.GeometryLineString:
		return geojson.NewLineStringGeometry(douglasPeucker(g.LineString, tolerance))
	case geojson.GeometryMultiLineString:
		lines := make([][][]float64, len(g.MultiLineString))
		for i, ls := range g.MultiLineString {
			lines[i] = douglasPeucker(ls, tolerance)
		}
		return geojson.NewMultiLineStringGeometry(lines...)
	case geojson.GeometryPolygon:
		return geojson.NewPolygonGeometry(simplifyRings(g.Polygon, tolerance))
	case geojson.GeometryMultiPolygon:
		polys := make([][][][]float64, len(g.MultiPolygon))
		for i, p := range g.MultiPolygon {
			polys[i] = simplifyRings(p, tolerance)
		}
		return geojson.NewMultiPolygonGeometry(polys...)
	default:
		return g
	}
}

func simplifyFeature(f *geojson.Feature, tolerance float64) *geojson.Feature {
	if f == nil || f.Geometry == nil {
		return f
	}
	g := SimplifyGeometry(f.Geometry, tolerance)
	if g == f.Geometry {
		return f
	}
	nf := geojson.NewFeature(g)
	nf.ID = f.ID
	nf.Properties = f.Properties
	return nf
}

// simplifyRings runs the simplifier on the outer ring and every hole.
// Closure (first coordinate equals last) is enforced explicitly, not
// assumed to survive simplification.
func simplifyRings(rings [][][]float64, tolerance float64) [][][]float64 {
	out := make([][][]float64, len(rings))
	for i, ring := range rings {
		s := douglasPeucker(ring, tolerance)
		if len(s) > 0 && !sameCoord(s[0], s[len(s)-1]) {
			s = append(s, s[0])
		}
		out[i] = s
	}
	return out
}

func sameCoord(a, b []float64) bool {
	return len(a) >= 2 && len(b) >= 2 && a[0] == b[0] && a[1] == b[1]
}

func douglasPeucker(points [][]float64, tolerance float64) [][]float64 {
	if len(points) <= 2 {
		return append([][]float64(nil), points...)
	}

	end := len(points) - 1
	maxDist, maxIdx := 0.0, 0
	for i := 1; i < end; i++ {
		if d := pointSegmentDistance(points[i], points[0], points[end]); d > maxDist {
			maxDist, maxIdx = d, i
		}
	}

	if maxDist > tolerance {
		left := douglasPeucker(points[:maxIdx+1], tolerance)
		right := douglasPeucker(points[maxIdx:], tolerance)
		// The split point appears at the end of left and the start of right.
		return append(left[:len(left)-1], right...)
	}

	return [][]float64{points[0], points[end]}
}

// pointSegmentDistance is the planar point-to-segment projection distance.
// Planar is fine here: tolerances are tiny relative to projection
// distortion at the zoom levels where simplification runs.
func pointSegmentDistance(p, a, b []float64) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	if dx == 0 && dy == 0 {
		return math.Hypot(p[0]-a[0], p[1]-a[1])
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(p[0]-(a[0]+t*dx), p[1]-(a[1]+t*dy))
}
