package optimizer

import (
	"log"

	geojson "github.com/paulmach/go.geojson"

	"github.com/civicmaps/geoflow/pkg/render"
)

// ProgressiveLoader applies a large collection to a live renderer source in
// incremental batches, yielding to the scheduler between batches so the
// host loop keeps breathing through big layer swaps. Each step pushes the
// union of all batches delivered so far — cumulative, not a diff — so a
// half-finished load still leaves the source in a coherent state.
type ProgressiveLoader struct {
	mapRef    render.Map
	sched     *Scheduler
	sourceID  string
	features  []*geojson.Feature
	batchSize int
	applied   int
	cancelled bool
	done      bool
	onDone    func()
}

func NewProgressiveLoader(m render.Map, sched *Scheduler, sourceID string, fc *geojson.FeatureCollection, batchSize int) *ProgressiveLoader {
	if batchSize <= 0 {
		batchSize = DefaultConfig().BatchSize
	}
	var features []*geojson.Feature
	if fc != nil {
		features = fc.Features
	}
	return &ProgressiveLoader{
		mapRef:    m,
		sched:     sched,
		sourceID:  sourceID,
		features:  features,
		batchSize: batchSize,
	}
}

// Start queues the first batch on the scheduler.
func (l *ProgressiveLoader) Start() {
	l.sched.Defer(l.step)
}

// Cancel stops the load cooperatively. A batch already executing completes;
// the next queued step observes the flag and does nothing. Callers must
// cancel a superseded loader before starting a new one for the same source,
// since two loaders writing to one source would interleave batches.
func (l *ProgressiveLoader) Cancel() {
	l.cancelled = true
}

// Done reports whether the load has finished (fully applied, cancelled
// target gone, or write failure).
func (l *ProgressiveLoader) Done() bool {
	return l.done
}

// Applied reports how many features have reached the source so far.
func (l *ProgressiveLoader) Applied() int {
	return l.applied
}

func (l *ProgressiveLoader) step() {
	if l.cancelled || l.done {
		return
	}

	src, ok := l.mapRef.GetSource(l.sourceID)
	if !ok {
		// The source owner tore it down mid-load. Displayed state belongs
		// to the source, so the load just ends; no retry.
		log.Printf("Source %q disappeared during progressive load, stopping", l.sourceID)
		l.finish()
		return
	}

	next := l.applied + l.batchSize
	if next > len(l.features) {
		next = len(l.features)
	}
	l.applied = next

	fc := geojson.NewFeatureCollection()
	fc.Features = l.features[:l.applied]
	if err := src.SetData(fc); err != nil {
		log.Printf("SetData on source %q failed: %v", l.sourceID, err)
		l.finish()
		return
	}

	if l.applied < len(l.features) {
		l.sched.Defer(l.step)
		return
	}
	l.finish()
}

func (l *ProgressiveLoader) finish() {
	l.done = true
	if l.onDone != nil {
		l.onDone()
	}
}
