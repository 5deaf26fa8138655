package optimizer

import (
	"fmt"
	"log"

	"github.com/civicmaps/geoflow/pkg/render"
)

// VisibilityCoordinator deduplicates layer visibility changes so repeated
// toggles from UI state churn never reach the renderer. It is the only
// writer of its state map; nothing else reads it.
type VisibilityCoordinator struct {
	mapRef render.Map
	state  map[string]bool
}

func NewVisibilityCoordinator(m render.Map) *VisibilityCoordinator {
	return &VisibilityCoordinator{
		mapRef: m,
		state:  make(map[string]bool),
	}
}

// SetVisible applies the change only when it differs from the last state
// applied for that layer. Idempotent: the same request twice issues exactly
// one renderer call.
func (v *VisibilityCoordinator) SetVisible(layerID string, visible bool) error {
	if cur, ok := v.state[layerID]; ok && cur == visible {
		return nil
	}
	if err := v.mapRef.SetLayerVisibility(layerID, visible); err != nil {
		return fmt.Errorf("set visibility on layer %q: %w", layerID, err)
	}
	v.state[layerID] = visible
	return nil
}

// BatchSet applies a mapping of layer id to visibility in one pass, each
// change going through the same dedup check. Failures are logged per layer
// so one bad id doesn't block the rest.
func (v *VisibilityCoordinator) BatchSet(updates map[string]bool) {
	for id, visible := range updates {
		if err := v.SetVisible(id, visible); err != nil {
			log.Printf("Visibility update for layer %q failed: %v", id, err)
		}
	}
}
