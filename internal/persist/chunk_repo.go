package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ferrumgo/server/internal/component"
	"github.com/jackc/pgx/v5"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

const upsertChunkSQL = `INSERT INTO chunks (x, z, dimension, sections, heightmap)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (dimension, x, z) DO UPDATE
	SET sections = EXCLUDED.sections, heightmap = EXCLUDED.heightmap, imported_at = now()`

// BatchInsert upserts a batch of chunk columns in one transaction. Either the
// whole batch is stored or none of it is.
func (r *ChunkRepo) BatchInsert(ctx context.Context, chunks []component.ChunkColumn) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chunk batch begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, c := range chunks {
		sections, err := json.Marshal(c.Sections)
		if err != nil {
			return fmt.Errorf("encode sections %s: %w", c.Key(), err)
		}
		heightmap, err := json.Marshal(c.Heightmap)
		if err != nil {
			return fmt.Errorf("encode heightmap %s: %w", c.Key(), err)
		}
		batch.Queue(upsertChunkSQL, c.X, c.Z, c.Dimension, sections, heightmap)
	}

	br := tx.SendBatch(ctx, batch)
	for _, c := range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("chunk insert %s: %w", c.Key(), err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("chunk batch close: %w", err)
	}
	return tx.Commit(ctx)
}

// GetChunk loads one column. Returns nil, nil when it was never imported.
func (r *ChunkRepo) GetChunk(ctx context.Context, x, z int32, dimension string) (*component.ChunkColumn, error) {
	var sections, heightmap []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT sections, heightmap FROM chunks WHERE dimension = $1 AND x = $2 AND z = $3`,
		dimension, x, z,
	).Scan(&sections, &heightmap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk %s:%d:%d: %w", dimension, x, z, err)
	}

	c := &component.ChunkColumn{X: x, Z: z, Dimension: dimension}
	if err := json.Unmarshal(sections, &c.Sections); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	if err := json.Unmarshal(heightmap, &c.Heightmap); err != nil {
		return nil, fmt.Errorf("decode heightmap: %w", err)
	}
	return c, nil
}

// Count returns how many columns are stored for a dimension.
func (r *ChunkRepo) Count(ctx context.Context, dimension string) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE dimension = $1`, dimension,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}
