package optimizer

import (
	"log"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/civicmaps/geoflow/pkg/render"
	"github.com/civicmaps/geoflow/pkg/telemetry"
)

// How often the memory clock samples heap usage.
const memorySampleInterval = 5 * time.Second

// LayerMetrics records the most recent optimization pass for one layer.
// Owned exclusively by the monitor and overwritten on every pass; the
// geometry passes never read it.
type LayerMetrics struct {
	FeatureCount   int
	RenderTime     time.Duration
	EstimatedBytes uint64
	LastUpdate     time.Time
}

// ResourceMonitor tracks frame pacing and approximate heap usage for one
// viewer instance. The frame clock is advisory telemetry; the memory clock
// can trigger a cleanup pass that evicts renderer sources no layer
// references anymore.
type ResourceMonitor struct {
	cfg    Config
	caps   Capabilities
	mapRef render.Map

	frames     int
	frameReset time.Time
	paused     bool

	// Process-wide monitor state for this viewer instance.
	FPS                int
	FrameDrops         int
	TotalMemoryBytes   uint64
	ActiveFeatureCount int

	layers map[string]*LayerMetrics
}

func NewResourceMonitor(cfg Config, caps Capabilities, m render.Map) *ResourceMonitor {
	if caps.Now == nil {
		caps.Now = time.Now
	}
	return &ResourceMonitor{
		cfg:        cfg,
		caps:       caps,
		mapRef:     m,
		frameReset: caps.Now(),
		layers:     make(map[string]*LayerMetrics),
	}
}

// OnFrame is called once per render frame. Once a second it derives fps and
// the shortfall against 60, then resets the counter. Nothing here cancels
// work; it is telemetry only.
func (m *ResourceMonitor) OnFrame() {
	if m.paused {
		return
	}
	m.frames++
	now := m.caps.Now()
	if now.Sub(m.frameReset) < time.Second {
		return
	}
	m.FPS = m.frames
	m.FrameDrops = 60 - m.FPS
	if m.FrameDrops < 0 {
		m.FrameDrops = 0
	}
	m.frames = 0
	m.frameReset = now
	telemetry.FramesPerSecond.Set(float64(m.FPS))
	telemetry.FrameDrops.Set(float64(m.FrameDrops))
}

// Pause stops frame accounting while the host page is hidden. Progressive
// loads are unaffected; only the frame clock sleeps.
func (m *ResourceMonitor) Pause() {
	m.paused = true
}

// Resume restarts frame accounting from a fresh window so hidden time never
// reads as dropped frames.
func (m *ResourceMonitor) Resume() {
	if !m.paused {
		return
	}
	m.paused = false
	m.frames = 0
	m.frameReset = m.caps.Now()
}

// SampleMemory runs on the 5-second memory clock. Hosts without a heap
// probe skip threshold checks entirely.
func (m *ResourceMonitor) SampleMemory() {
	if m.caps.HeapUsed == nil {
		return
	}
	used, ok := m.caps.HeapUsed()
	if !ok {
		return
	}
	m.TotalMemoryBytes = used
	telemetry.HeapBytes.Set(float64(used))
	if m.cfg.MemoryThresholdBytes > 0 && used > m.cfg.MemoryThresholdBytes {
		log.Printf("Heap %d bytes over threshold %d, running cleanup", used, m.cfg.MemoryThresholdBytes)
		m.Cleanup()
	}
}

// Cleanup removes every style source no layer references and clears the
// accumulated per-layer metrics. A source any layer still draws from is
// never removed, whatever the memory pressure; a removal failure is logged
// per source and the pass moves on.
func (m *ResourceMonitor) Cleanup() {
	style := m.mapRef.Style()
	referenced := make(map[string]bool, len(style.Layers))
	for _, l := range style.Layers {
		referenced[l.SourceID] = true
	}

	evicted := 0
	for _, id := range style.Sources {
		if referenced[id] {
			continue
		}
		if err := m.mapRef.RemoveSource(id); err != nil {
			log.Printf("Cleanup: removing source %q failed: %v", id, err)
			continue
		}
		evicted++
	}

	m.layers = make(map[string]*LayerMetrics)
	m.ActiveFeatureCount = 0
	telemetry.ActiveFeatures.Set(0)
	telemetry.CleanupPassesTotal.Inc()
	telemetry.SourcesEvictedTotal.Add(float64(evicted))
	if evicted > 0 {
		log.Printf("Cleanup evicted %d unreferenced sources", evicted)
	}
}

// RecordPass overwrites the metrics entry for a layer after an optimization
// pass.
func (m *ResourceMonitor) RecordPass(layerID string, featureCount int, renderTime time.Duration, estimatedBytes uint64) {
	m.layers[layerID] = &LayerMetrics{
		FeatureCount:   featureCount,
		RenderTime:     renderTime,
		EstimatedBytes: estimatedBytes,
		LastUpdate:     m.caps.Now(),
	}
	total := 0
	for _, lm := range m.layers {
		total += lm.FeatureCount
	}
	m.ActiveFeatureCount = total
	telemetry.ActiveFeatures.Set(float64(total))
}

// LayerMetricsFor returns the most recent pass record for a layer.
func (m *ResourceMonitor) LayerMetricsFor(layerID string) (LayerMetrics, bool) {
	lm, ok := m.layers[layerID]
	if !ok {
		return LayerMetrics{}, false
	}
	return *lm, true
}

// EstimateBytes is a rough in-memory size figure for a collection, good
// enough for threshold comparisons. It counts coordinates and property
// slots, not exact allocator overhead.
func EstimateBytes(fc *geojson.FeatureCollection) uint64 {
	if fc == nil {
		return 0
	}
	var total uint64
	for _, f := range fc.Features {
		total += 200 // struct + map overhead
		if f == nil {
			continue
		}
		total += uint64(coordCount(f.Geometry)) * 16
		total += uint64(len(f.Properties)) * 64
	}
	return total
}

func coordCount(g *geojson.Geometry) int {
	if g == nil {
		return 0
	}
	switch g.Type {
	case geojson.GeometryPoint:
		return 1
	case geojson.GeometryMultiPoint:
		return len(g.MultiPoint)
	case geojson.GeometryLineString:
		return len(g.LineString)
	case geojson.GeometryMultiLineString:
		n := 0
		for _, ls := range g.MultiLineString {
			n += len(ls)
		}
		return n
	case geojson.GeometryPolygon:
		n := 0
		for _, ring := range g.Polygon {
			n += len(ring)
		}
		return n
	case geojson.GeometryMultiPolygon:
		n := 0
		for _, poly := range g.MultiPolygon {
			for _, ring := range poly {
				n += len(ring)
			}
		}
		return n
	case geojson.GeometryCollection:
		n := 0
		for _, sub := range g.Geometries {
			n += coordCount(sub)
		}
		return n
	default:
		return 0
	}
}
