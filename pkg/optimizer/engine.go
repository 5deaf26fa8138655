package optimizer

import (
	"log"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/civicmaps/geoflow/pkg/render"
	"github.com/civicmaps/geoflow/pkg/telemetry"
)

// Engine owns the optimization state for one viewer instance: the
// cooperative scheduler, per-layer progressive loads, the resource monitor,
// and the visibility coordinator. All methods run on the goroutine that
// drives Tick and OnFrame; there is no internal concurrency.
type Engine struct {
	cfg  Config
	caps Capabilities

	mapRef     render.Map
	sched      *Scheduler
	monitor    *ResourceMonitor
	visibility *VisibilityCoordinator

	loads         map[string]*ProgressiveLoader
	memoryClockID int
	destroyed     bool
}

func NewEngine(m render.Map, cfg Config, caps Capabilities) *Engine {
	if cfg.RenderBudget <= 0 {
		cfg.RenderBudget = DefaultConfig().RenderBudget
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = DefaultConfig().MaxFeatures
	}
	if caps.Now == nil {
		caps.Now = time.Now
	}

	e := &Engine{
		cfg:        cfg,
		caps:       caps,
		mapRef:     m,
		sched:      NewScheduler(caps.Now),
		monitor:    NewResourceMonitor(cfg, caps, m),
		visibility: NewVisibilityCoordinator(m),
		loads:      make(map[string]*ProgressiveLoader),
	}
	e.memoryClockID = e.sched.Every(memorySampleInterval, e.monitor.SampleMemory)
	return e
}

// OptimizeLayer runs the zoom-appropriate pipeline over a collection and
// progressively applies the result to the layer's source. An in-flight load
// for the same layer is cancelled first so two loaders never write to one
// source. A pass that panics is contained here: the renderer keeps whatever
// it was showing, and the failure surfaces only in the logs and metrics.
func (e *Engine) OptimizeLayer(layerID, sourceID string, fc *geojson.FeatureCollection, zoom float64) {
	if e.destroyed || fc == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Optimization pass for layer %q failed: %v", layerID, r)
		}
	}()

	start := e.caps.Now()
	out := SelectStrategy(zoom, e.cfg).Apply(fc)
	elapsed := e.caps.Now().Sub(start)

	e.monitor.RecordPass(layerID, len(out.Features), elapsed, EstimateBytes(out))
	telemetry.OptimizePassesTotal.WithLabelValues(layerID).Inc()
	telemetry.OptimizeDurationMs.Observe(float64(elapsed) / float64(time.Millisecond))
	if elapsed > e.cfg.RenderBudget {
		log.Printf("Layer %q pass took %v, over the %v budget (%d -> %d features)",
			layerID, elapsed, e.cfg.RenderBudget, len(fc.Features), len(out.Features))
	}

	if prev, ok := e.loads[layerID]; ok && !prev.Done() {
		prev.Cancel()
	}
	loader := NewProgressiveLoader(e.mapRef, e.sched, sourceID, out, e.cfg.BatchSize)
	loader.onDone = func() { delete(e.loads, layerID) }
	e.loads[layerID] = loader
	loader.Start()
}

// Tick advances the scheduler: pending loader batches, then the memory
// clock when due.
func (e *Engine) Tick() {
	if e.destroyed {
		return
	}
	e.sched.Tick()
}

// OnFrame forwards a render-frame callback to the frame clock.
func (e *Engine) OnFrame() {
	if e.destroyed {
		return
	}
	e.monitor.OnFrame()
}

// Loading reports whether any layer still has batches queued.
func (e *Engine) Loading() bool {
	return len(e.loads) > 0 || e.sched.Pending()
}

// SetVisible routes a visibility change through the dedup coordinator.
func (e *Engine) SetVisible(layerID string, visible bool) error {
	if e.destroyed {
		return nil
	}
	return e.visibility.SetVisible(layerID, visible)
}

// BatchSetVisible applies several visibility changes in one pass.
func (e *Engine) BatchSetVisible(updates map[string]bool) {
	if e.destroyed {
		return
	}
	e.visibility.BatchSet(updates)
}

// HandleVisibilityChange reacts to the host page being hidden or shown.
// Hiding pauses the frame clock only; queued progressive batches still run
// on subsequent ticks.
func (e *Engine) HandleVisibilityChange(hidden bool) {
	if e.destroyed {
		return
	}
	if hidden {
		e.monitor.Pause()
	} else {
		e.monitor.Resume()
	}
}

// Monitor exposes the resource monitor for metric reads.
func (e *Engine) Monitor() *ResourceMonitor {
	return e.monitor
}

// Destroy cancels the memory clock, every in-flight load, and all pending
// scheduler work. Idempotent: a second call is a no-op.
func (e *Engine) Destroy() {
	if e.destroyed {
		return
	}
	e.destroyed = true
	for _, l := range e.loads {
		l.Cancel()
	}
	e.loads = make(map[string]*ProgressiveLoader)
	e.sched.CancelInterval(e.memoryClockID)
	e.sched.Stop()
}
