package system

import (
	"context"
	"time"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: dispatch queued packets
	PhaseUpdate                  // 1: game logic
	PhasePostUpdate              // 2: derived state
	PhaseCleanup                 // 3: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// System is the interface every ECS system implements. Systems of the same
// phase run concurrently, so Update must only touch component data through
// the storage guards.
type System interface {
	Name() string
	Phase() Phase
	Update(ctx context.Context, dt time.Duration) error
}
