package world

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ferrumgo/server/internal/component"
	"github.com/ferrumgo/server/internal/config"
	"github.com/ferrumgo/server/internal/core/ecs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ChunkSink persists processed chunk batches. persist.ChunkRepo is the
// production implementation.
type ChunkSink interface {
	BatchInsert(ctx context.Context, chunks []component.ChunkColumn) error
}

// Result summarises one import run.
type Result struct {
	Total    int // chunks found by the counting pass
	Imported int
	Skipped  int
	Elapsed  time.Duration
}

// Importer loads region manifests into the world. Each batch is processed in
// parallel, then every valid chunk becomes an entity carrying a ChunkColumn
// and the batch is handed to the sink.
type Importer struct {
	world     *ecs.World
	sink      ChunkSink
	batchSize int
	workers   int
	log       *zap.Logger
}

// NewImporter builds an importer. sink may be nil, in which case chunks are
// only loaded into the world.
func NewImporter(world *ecs.World, sink ChunkSink, cfg config.ImportConfig, log *zap.Logger) *Importer {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 150
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Importer{world: world, sink: sink, batchSize: batch, workers: workers, log: log}
}

// Run imports every manifest in dir. Invalid chunks and unreadable manifests
// are skipped with a warning; a sink failure aborts the run.
func (im *Importer) Run(ctx context.Context, dir string) (Result, error) {
	start := time.Now()
	im.log.Debug("starting import", zap.String("dir", dir))

	files, err := regionFiles(dir)
	if err != nil {
		return Result{}, err
	}

	im.log.Info("analyzing world data")
	res := Result{Total: im.countChunks(files)}
	im.log.Info("preparing import",
		zap.Int("chunks", res.Total),
		zap.Int("batch_size", im.batchSize),
		zap.Int("workers", im.workers),
	)

	var done int
	for _, path := range files {
		region, err := LoadRegion(path)
		if err != nil {
			im.log.Warn("skipped region", zap.String("file", path), zap.Error(err))
			continue
		}

		pending := region.Chunks
		for len(pending) > 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			n := min(im.batchSize, len(pending))
			batch := pending[:n]
			pending = pending[n:]

			batchStart := time.Now()
			chunks := im.processBatch(region.Name, batch)
			res.Skipped += len(batch) - len(chunks)
			processed := time.Since(batchStart)

			insertStart := time.Now()
			if err := im.insert(ctx, chunks); err != nil {
				return res, fmt.Errorf("region %s: %w", region.Name, err)
			}
			res.Imported += len(chunks)
			done += len(batch)

			im.log.Info("imported batch",
				zap.String("region", region.Name),
				zap.Int("chunks", len(chunks)),
				zap.Int("progress", done),
				zap.Int("total", res.Total),
				zap.Duration("process", processed),
				zap.Duration("insert", time.Since(insertStart)),
			)
		}
	}

	res.Elapsed = time.Since(start)
	im.log.Info("import complete",
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.String("took", FormatDuration(res.Elapsed)),
	)
	return res, nil
}

func (im *Importer) countChunks(files []string) int {
	var total atomic.Int64
	var g errgroup.Group
	g.SetLimit(im.workers)
	for _, path := range files {
		g.Go(func() error {
			region, err := LoadRegion(path)
			if err != nil {
				im.log.Warn("could not read region", zap.String("file", path), zap.Error(err))
				return nil
			}
			total.Add(int64(len(region.Chunks)))
			return nil
		})
	}
	g.Wait()
	return int(total.Load())
}

// processBatch converts a batch concurrently, keeping input order and
// dropping chunks that fail validation.
func (im *Importer) processBatch(region string, batch []ChunkData) []component.ChunkColumn {
	out := make([]component.ChunkColumn, len(batch))
	ok := make([]bool, len(batch))

	var g errgroup.Group
	g.SetLimit(im.workers)
	for i := range batch {
		g.Go(func() error {
			c, err := ProcessChunk(batch[i])
			if err != nil {
				im.log.Warn("failed to process chunk, skipping",
					zap.String("region", region), zap.Error(err))
				return nil
			}
			out[i], ok[i] = c, true
			return nil
		})
	}
	g.Wait()

	chunks := out[:0]
	for i, c := range out {
		if ok[i] {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

func (im *Importer) insert(ctx context.Context, chunks []component.ChunkColumn) error {
	if len(chunks) == 0 {
		return nil
	}
	if im.sink != nil {
		if err := im.sink.BatchInsert(ctx, chunks); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	storage := im.world.Storage()
	for _, c := range chunks {
		ecs.Insert(storage, im.world.CreateEntity(), c)
	}
	return nil
}
