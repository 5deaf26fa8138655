package render

import (
	"fmt"
	"sync"

	geojson "github.com/paulmach/go.geojson"
)

// MemorySource holds a collection in memory and counts SetData calls.
type MemorySource struct {
	mu       sync.Mutex
	data     *geojson.FeatureCollection
	setCalls int
}

func (s *MemorySource) SetData(fc *geojson.FeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = fc
	s.setCalls++
	return nil
}

// Data returns the most recently applied collection.
func (s *MemorySource) Data() *geojson.FeatureCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// SetDataCalls reports how many times SetData has run.
func (s *MemorySource) SetDataCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls
}

// MemoryMap is an in-memory Map implementation. The server hosts one as its
// source of truth for websocket clients, and tests use it to observe what
// the engine pushed at the renderer.
type MemoryMap struct {
	mu              sync.Mutex
	sources         map[string]*MemorySource
	layers          []Layer
	hints           Hints
	visibilityCalls int
}

func NewMemoryMap() *MemoryMap {
	return &MemoryMap{sources: make(map[string]*MemorySource)}
}

func (m *MemoryMap) GetSource(id string) (Source, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[id]
	if !ok {
		return nil, false
	}
	return src, true
}

// GetMemorySource returns the concrete source for inspection.
func (m *MemoryMap) GetMemorySource(id string) (*MemorySource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[id]
	return src, ok
}

func (m *MemoryMap) AddSource(id string, fc *geojson.FeatureCollection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sources[id]; exists {
		return fmt.Errorf("source %q already exists", id)
	}
	src := &MemorySource{}
	if fc != nil {
		src.data = fc
	}
	m.sources[id] = src
	return nil
}

func (m *MemoryMap) RemoveSource(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("no such source %q", id)
	}
	delete(m.sources, id)
	return nil
}

// AddLayer registers a style layer backed by an existing source. New layers
// start visible.
func (m *MemoryMap) AddLayer(id, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[sourceID]; !ok {
		return fmt.Errorf("layer %q references unknown source %q", id, sourceID)
	}
	for _, l := range m.layers {
		if l.ID == id {
			return fmt.Errorf("layer %q already exists", id)
		}
	}
	m.layers = append(m.layers, Layer{ID: id, SourceID: sourceID, Visible: true})
	return nil
}

func (m *MemoryMap) Style() Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Style{
		Sources: make([]string, 0, len(m.sources)),
		Layers:  append([]Layer(nil), m.layers...),
	}
	for id := range m.sources {
		st.Sources = append(st.Sources, id)
	}
	return st
}

func (m *MemoryMap) SetLayerVisibility(layerID string, visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.layers {
		if m.layers[i].ID == layerID {
			m.layers[i].Visible = visible
			m.visibilityCalls++
			return nil
		}
	}
	return fmt.Errorf("no such layer %q", layerID)
}

// VisibilityCalls reports how many visibility changes reached the map.
func (m *MemoryMap) VisibilityCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visibilityCalls
}

// ApplyHints records advisory settings.
func (m *MemoryMap) ApplyHints(h Hints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hints = h
}

// Hints returns the last applied advisory settings.
func (m *MemoryMap) Hints() Hints {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hints
}
