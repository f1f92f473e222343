package world

import (
	"context"
	"errors"
	"testing"

	"github.com/ferrumgo/server/internal/component"
	"github.com/ferrumgo/server/internal/core/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapSource struct {
	chunks map[string]component.ChunkColumn
	err    error
}

func (m mapSource) GetChunk(_ context.Context, x, z int32, dimension string) (*component.ChunkColumn, error) {
	if m.err != nil {
		return nil, m.err
	}
	key := component.ChunkColumn{X: x, Z: z, Dimension: dimension}.Key()
	if c, ok := m.chunks[key]; ok {
		return &c, nil
	}
	return nil, nil
}

func sourceOf(cols ...component.ChunkColumn) mapSource {
	m := mapSource{chunks: map[string]component.ChunkColumn{}}
	for _, c := range cols {
		m.chunks[c.Key()] = c
	}
	return m
}

func TestPreloadSpawnLoadsStoredColumns(t *testing.T) {
	src := sourceOf(
		component.ChunkColumn{X: 0, Z: 0, Dimension: DefaultDimension},
		component.ChunkColumn{X: -1, Z: 1, Dimension: DefaultDimension},
		component.ChunkColumn{X: 2, Z: 0, Dimension: DefaultDimension}, // outside radius 1
		component.ChunkColumn{X: 0, Z: 0, Dimension: "nether"},
	)
	w := ecs.NewWorld(zap.NewNop())

	n, err := PreloadSpawn(context.Background(), w, src, DefaultDimension, 1, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var keys []string
	for _, id := range ecs.Entities[component.ChunkColumn](w.Storage()) {
		ref, ok := ecs.Get[component.ChunkColumn](context.Background(), w.Storage(), id)
		require.True(t, ok)
		keys = append(keys, ref.Get().Key())
		ref.Release()
	}
	assert.ElementsMatch(t, []string{"overworld:0:0", "overworld:-1:1"}, keys)
}

func TestPreloadSpawnDisabled(t *testing.T) {
	w := ecs.NewWorld(nil)
	n, err := PreloadSpawn(context.Background(), w, sourceOf(component.ChunkColumn{Dimension: DefaultDimension}), DefaultDimension, -1, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, ecs.Len[component.ChunkColumn](w.Storage()))
}

func TestPreloadSpawnSourceError(t *testing.T) {
	boom := errors.New("db down")
	w := ecs.NewWorld(nil)
	_, err := PreloadSpawn(context.Background(), w, mapSource{err: boom}, DefaultDimension, 0, zap.NewNop())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, ecs.Len[component.ChunkColumn](w.Storage()))
}
