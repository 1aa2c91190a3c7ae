package system

import (
	"time"

	"github.com/blengine/engine/internal/core/event"
	coresys "github.com/blengine/engine/internal/core/system"
)

// EventDispatchSystem makes last frame's events visible and delivers them.
// Phase 0 (Input).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
