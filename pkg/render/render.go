// Package render defines the narrow contract the optimization engine needs
// from a map renderer. The concrete renderer (Mapbox GL, Leaflet, a tile
// server) lives outside this repository; the engine only ever talks to
// these interfaces, plus a purely advisory hints surface.
package render

import geojson "github.com/paulmach/go.geojson"

// Source is a mutable GeoJSON data source owned by the renderer. SetData
// replaces the source's contents wholesale.
type Source interface {
	SetData(fc *geojson.FeatureCollection) error
}

// Layer describes one style layer as reported by the renderer.
type Layer struct {
	ID       string
	SourceID string
	Visible  bool
}

// Style is a snapshot of the renderer's current sources and layers, the
// shape getStyle() exposes.
type Style struct {
	Sources []string
	Layers  []Layer
}

// Map is the renderer surface the engine drives.
type Map interface {
	GetSource(id string) (Source, bool)
	AddSource(id string, fc *geojson.FeatureCollection) error
	RemoveSource(id string) error
	Style() Style
	SetLayerVisibility(layerID string, visible bool) error
}

// Hints are advisory rendering settings applied at startup. Renderers that
// don't understand them ignore them; nothing here is correctness-critical.
type Hints struct {
	// RenderWorldCopies draws wrapped world copies at low zoom. Off for
	// regional municipal data.
	RenderWorldCopies bool

	// MaxTileCacheSize caps the renderer's tile cache entry count.
	MaxTileCacheSize int
}
