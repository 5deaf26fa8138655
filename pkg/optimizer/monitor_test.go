package optimizer

import (
	"errors"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/civicmaps/geoflow/pkg/render"
)

func monitorFixture(clock *fakeClock) (*ResourceMonitor, *render.MemoryMap) {
	m := render.NewMemoryMap()
	caps := Capabilities{Now: clock.Now}
	return NewResourceMonitor(DefaultConfig(), caps, m), m
}

func TestFrameClockDerivesFPS(t *testing.T) {
	clock := newFakeClock()
	mon, _ := monitorFixture(clock)

	for i := 0; i < 45; i++ {
		mon.OnFrame()
	}
	clock.Advance(1100 * time.Millisecond)
	mon.OnFrame()

	if mon.FPS != 46 {
		t.Errorf("Expected FPS 46, got %d", mon.FPS)
	}
	if mon.FrameDrops != 14 {
		t.Errorf("Expected 14 dropped frames, got %d", mon.FrameDrops)
	}
}

func TestFrameClockNeverReportsNegativeDrops(t *testing.T) {
	clock := newFakeClock()
	mon, _ := monitorFixture(clock)

	for i := 0; i < 69; i++ {
		mon.OnFrame()
	}
	clock.Advance(time.Second)
	mon.OnFrame()

	if mon.FPS != 70 {
		t.Errorf("Expected FPS 70, got %d", mon.FPS)
	}
	if mon.FrameDrops != 0 {
		t.Errorf("Expected 0 dropped frames above 60fps, got %d", mon.FrameDrops)
	}
}

func TestFrameClockPauseResume(t *testing.T) {
	clock := newFakeClock()
	mon, _ := monitorFixture(clock)

	for i := 0; i < 30; i++ {
		mon.OnFrame()
	}
	mon.Pause()

	// Frames while paused are ignored, and so is elapsed time.
	clock.Advance(time.Minute)
	for i := 0; i < 100; i++ {
		mon.OnFrame()
	}
	if mon.FPS != 0 {
		t.Errorf("Paused clock derived FPS %d", mon.FPS)
	}

	mon.Resume()
	for i := 0; i < 19; i++ {
		mon.OnFrame()
	}
	clock.Advance(time.Second)
	mon.OnFrame()

	// Pre-pause frames must not leak into the fresh window.
	if mon.FPS != 20 {
		t.Errorf("Expected FPS 20 after resume, got %d", mon.FPS)
	}
}

func TestSampleMemoryTriggersCleanup(t *testing.T) {
	clock := newFakeClock()
	m := render.NewMemoryMap()
	if err := m.AddSource("orphan", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.AddSource("kept", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.AddLayer("roads", "kept"); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.MemoryThresholdBytes = 100
	caps := Capabilities{
		Now:      clock.Now,
		HeapUsed: func() (uint64, bool) { return 200, true },
	}
	mon := NewResourceMonitor(cfg, caps, m)

	mon.SampleMemory()

	if mon.TotalMemoryBytes != 200 {
		t.Errorf("Expected TotalMemoryBytes 200, got %d", mon.TotalMemoryBytes)
	}
	if _, ok := m.GetSource("orphan"); ok {
		t.Error("Expected the unreferenced source evicted")
	}
	if _, ok := m.GetSource("kept"); !ok {
		t.Error("A layer-referenced source was evicted")
	}
}

func TestSampleMemoryWithoutHeapProbe(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.MemoryThresholdBytes = 1
	mon := NewResourceMonitor(cfg, Capabilities{Now: clock.Now}, render.NewMemoryMap())

	// Must not panic or act without a heap probe.
	mon.SampleMemory()
	if mon.TotalMemoryBytes != 0 {
		t.Errorf("Expected no memory reading without a probe, got %d", mon.TotalMemoryBytes)
	}
}

// failingMap wraps a MemoryMap and refuses to remove one named source.
type failingMap struct {
	*render.MemoryMap
	failID string
}

func (m *failingMap) RemoveSource(id string) error {
	if id == m.failID {
		return errors.New("renderer busy")
	}
	return m.MemoryMap.RemoveSource(id)
}

func TestCleanupContainsPerSourceFailures(t *testing.T) {
	clock := newFakeClock()
	inner := render.NewMemoryMap()
	for _, id := range []string{"a", "b", "c"} {
		if err := inner.AddSource(id, nil); err != nil {
			t.Fatal(err)
		}
	}
	m := &failingMap{MemoryMap: inner, failID: "b"}
	mon := NewResourceMonitor(DefaultConfig(), Capabilities{Now: clock.Now}, m)

	mon.Cleanup()

	if _, ok := inner.GetSource("a"); ok {
		t.Error("Expected source a evicted")
	}
	if _, ok := inner.GetSource("b"); !ok {
		t.Error("The failing source should still exist")
	}
	if _, ok := inner.GetSource("c"); ok {
		t.Error("Expected source c evicted despite the earlier failure")
	}
}

func TestRecordPassTracksActiveFeatures(t *testing.T) {
	clock := newFakeClock()
	mon, _ := monitorFixture(clock)

	mon.RecordPass("roads", 100, 3*time.Millisecond, 5000)
	mon.RecordPass("parcels", 250, 8*time.Millisecond, 20000)
	if mon.ActiveFeatureCount != 350 {
		t.Errorf("Expected 350 active features, got %d", mon.ActiveFeatureCount)
	}

	// A repeat pass for the same layer overwrites, never accumulates.
	mon.RecordPass("roads", 40, time.Millisecond, 2000)
	if mon.ActiveFeatureCount != 290 {
		t.Errorf("Expected 290 active features after overwrite, got %d", mon.ActiveFeatureCount)
	}

	lm, ok := mon.LayerMetricsFor("roads")
	if !ok {
		t.Fatal("Expected metrics for roads")
	}
	if lm.FeatureCount != 40 || lm.EstimatedBytes != 2000 {
		t.Errorf("Unexpected metrics %+v", lm)
	}
	if _, ok := mon.LayerMetricsFor("absent"); ok {
		t.Error("Expected no metrics for an unknown layer")
	}
}

func TestEstimateBytes(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewLineStringFeature([][]float64{{0, 0}, {1, 1}, {2, 2}})
	f.SetProperty("name", "main st")
	fc.AddFeature(f)

	// 200 base + 3 coords * 16 + 1 property * 64.
	if got := EstimateBytes(fc); got != 312 {
		t.Errorf("Expected 312 bytes, got %d", got)
	}
	if EstimateBytes(nil) != 0 {
		t.Error("Expected 0 for a nil collection")
	}
}
