package system

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner executes systems in phase order each tick. Phases run one after the
// other; the systems inside a phase run in parallel.
type Runner struct {
	systems []System
	sorted  bool
	log     *zap.Logger
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every phase. A failing system does not stop its siblings or later
// phases; the first error is returned after the tick completes.
func (r *Runner) Tick(ctx context.Context, dt time.Duration) error {
	r.ensureSorted()
	var first error
	for start := 0; start < len(r.systems); {
		end := start
		for end < len(r.systems) && r.systems[end].Phase() == r.systems[start].Phase() {
			end++
		}
		if err := r.runPhase(ctx, r.systems[start:end], dt); err != nil && first == nil {
			first = err
		}
		start = end
	}
	return first
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(ctx context.Context, phase Phase, dt time.Duration) error {
	r.ensureSorted()
	batch := make([]System, 0, 4)
	for _, s := range r.systems {
		if s.Phase() == phase {
			batch = append(batch, s)
		}
	}
	return r.runPhase(ctx, batch, dt)
}

func (r *Runner) runPhase(ctx context.Context, batch []System, dt time.Duration) error {
	var g errgroup.Group
	for _, s := range batch {
		g.Go(func() error {
			if err := s.Update(ctx, dt); err != nil {
				r.log.Warn("system update failed",
					zap.String("system", s.Name()),
					zap.Stringer("phase", s.Phase()),
					zap.Error(err),
				)
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
