package system

import (
	"context"
	"time"

	"github.com/ferrumgo/server/internal/core/event"
	coresys "github.com/ferrumgo/server/internal/core/system"
)

// EventSystem delivers the events emitted during input and update to their
// subscribers. Phase 2 (PostUpdate).
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Name() string         { return "events" }
func (s *EventSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *EventSystem) Update(_ context.Context, _ time.Duration) error {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
	return nil
}
