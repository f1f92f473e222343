package system

import (
	"context"
	"time"

	"github.com/ferrumgo/server/internal/component"
	"github.com/ferrumgo/server/internal/core/ecs"
	coresys "github.com/ferrumgo/server/internal/core/system"
)

// MovementSystem integrates Velocity (blocks per second) into Position for
// every entity carrying both. Phase 1 (Update).
type MovementSystem struct {
	world *ecs.World
}

func NewMovementSystem(world *ecs.World) *MovementSystem {
	return &MovementSystem{world: world}
}

func (s *MovementSystem) Name() string         { return "movement" }
func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MovementSystem) Update(ctx context.Context, dt time.Duration) error {
	storage := s.world.Storage()
	secs := dt.Seconds()

	for _, id := range ecs.Entities[component.Velocity](storage) {
		vel, ok := ecs.Get[component.Velocity](ctx, storage, id)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		v := vel.Value()
		vel.Release()
		if v == (component.Velocity{}) {
			continue
		}

		pos, ok := ecs.GetMut[component.Position](ctx, storage, id)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		p := pos.Get()
		p.X += v.X * secs
		p.Y += v.Y * secs
		p.Z += v.Z * secs
		pos.Release()
	}
	return nil
}
