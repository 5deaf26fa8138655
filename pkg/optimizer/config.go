// Package optimizer turns raw municipal GIS feature collections into
// something a map renderer can draw inside its frame budget. It owns the
// level-of-detail pipeline (clustering, simplification, feature capping),
// progressive source loading, and resource monitoring for one viewer
// instance.
package optimizer

import (
	"runtime"
	"time"
)

// Config holds the immutable tunables for one engine instance.
type Config struct {
	// MaxFeatures caps how many features reach the renderer per layer at
	// the zoom brackets where capping applies.
	MaxFeatures int

	// SimplifyTolerance is the fallback Douglas-Peucker tolerance, in raw
	// coordinate degrees, used by callers running the simplifier outside
	// the zoom-bracket table.
	SimplifyTolerance float64

	// ClusterRadiusM is the fallback clustering radius in meters.
	ClusterRadiusM float64

	// RenderBudget is the per-pass time budget. Passes that run over are
	// logged, never aborted.
	RenderBudget time.Duration

	// MemoryThresholdBytes triggers a source cleanup pass when the sampled
	// heap figure exceeds it. Zero disables threshold checks.
	MemoryThresholdBytes uint64

	// BatchSize is how many features each progressive-load step applies.
	BatchSize int
}

// DefaultConfig returns the tunables the dashboard ships with.
func DefaultConfig() Config {
	return Config{
		MaxFeatures:          10000,
		SimplifyTolerance:    0.001,
		ClusterRadiusM:       50,
		RenderBudget:         16 * time.Millisecond, // 60fps
		MemoryThresholdBytes: 512 * 1024 * 1024,
		BatchSize:            500,
	}
}

// Capabilities are the host-environment probes the engine depends on.
// They are injected at construction so tests can drive time directly and
// so hosts without a heap figure degrade gracefully instead of sprinkling
// existence checks through the logic.
type Capabilities struct {
	// Now is the clock for frame pacing and scheduling.
	Now func() time.Time

	// HeapUsed samples approximate heap consumption. A nil func (or a
	// false return) disables memory-triggered cleanup without error.
	HeapUsed func() (uint64, bool)
}

// DefaultCapabilities uses the wall clock and the Go runtime's heap figure.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Now: time.Now,
		HeapUsed: func() (uint64, bool) {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return ms.HeapAlloc, true
		},
	}
}
