// Package telemetry exposes the engine's operational counters to
// Prometheus.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesPerSecond = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geoflow_fps",
		Help: "Frames counted over the last one-second window",
	})
	FrameDrops = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geoflow_frame_drops",
		Help: "Frames short of 60 in the last one-second window",
	})
	HeapBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geoflow_heap_bytes",
		Help: "Most recent sampled heap usage in bytes",
	})
	ActiveFeatures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geoflow_active_features",
		Help: "Features currently held across all optimized layers",
	})
	OptimizePassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoflow_optimize_passes_total",
		Help: "Total optimization passes by layer",
	}, []string{"layer"})
	OptimizeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoflow_optimize_duration_ms",
		Help:    "Optimization pass duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	CleanupPassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoflow_cleanup_passes_total",
		Help: "Total memory-pressure cleanup passes",
	})
	SourcesEvictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoflow_sources_evicted_total",
		Help: "Total unreferenced sources removed by cleanup",
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoflow_layer_cache_hits_total",
		Help: "Total layer fetches served from the disk cache",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoflow_layer_cache_misses_total",
		Help: "Total layer fetches that went to the upstream service",
	})
)

func init() {
	prometheus.MustRegister(
		FramesPerSecond,
		FrameDrops,
		HeapBytes,
		ActiveFeatures,
		OptimizePassesTotal,
		OptimizeDurationMs,
		CleanupPassesTotal,
		SourcesEvictedTotal,
		CacheHitsTotal,
		CacheMissesTotal,
	)
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
