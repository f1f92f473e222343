package system

import (
	"context"
	"time"

	"github.com/ferrumgo/server/internal/core/ecs"
	coresys "github.com/ferrumgo/server/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end.
// Phase 3 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
}

func NewCleanupSystem(world *ecs.World) *CleanupSystem {
	return &CleanupSystem{world: world}
}

func (s *CleanupSystem) Name() string         { return "cleanup" }
func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ context.Context, _ time.Duration) error {
	s.world.FlushDestroyQueue()
	return nil
}
