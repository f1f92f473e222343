package world

import (
	"context"
	"fmt"

	"github.com/ferrumgo/server/internal/component"
	"github.com/ferrumgo/server/internal/core/ecs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ChunkSource reads persisted columns. A missing column is (nil, nil).
// persist.ChunkRepo implements it.
type ChunkSource interface {
	GetChunk(ctx context.Context, x, z int32, dimension string) (*component.ChunkColumn, error)
}

const preloadWorkers = 4

// PreloadSpawn loads the stored columns within radius of the origin of one
// dimension into the world, one entity per column, and returns how many were
// found. Columns that were never imported are skipped. A negative radius
// loads nothing.
func PreloadSpawn(ctx context.Context, w *ecs.World, src ChunkSource, dimension string, radius int, log *zap.Logger) (int, error) {
	if radius < 0 {
		return 0, nil
	}
	side := 2*radius + 1
	found := make([]*component.ChunkColumn, side*side)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadWorkers)
	for i := range found {
		x := int32(i%side - radius)
		z := int32(i/side - radius)
		g.Go(func() error {
			c, err := src.GetChunk(gctx, x, z, dimension)
			if err != nil {
				return fmt.Errorf("preload chunk %d,%d: %w", x, z, err)
			}
			found[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for _, c := range found {
		if c == nil {
			continue
		}
		ecs.Insert(w.Storage(), w.CreateEntity(), *c)
		n++
	}
	log.Info("spawn area loaded",
		zap.String("dimension", dimension),
		zap.Int("radius", radius),
		zap.Int("chunks", n),
		zap.Int("missing", len(found)-n),
	)
	return n, nil
}
