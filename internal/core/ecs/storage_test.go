package ecs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Position struct{ X, Y float32 }
type Velocity struct{ X, Y float32 }

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestInsertGetRoundTrip(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()

	Insert(s, 0, Position{X: 0, Y: 0})
	pos, ok := Get[Position](ctx, s, 0)
	require.True(t, ok)
	assert.Equal(t, Position{X: 0, Y: 0}, pos.Value())
	pos.Release()

	Insert(s, 5, Position{X: 1, Y: 2})
	Remove[Position](s, 0)

	_, ok = Get[Position](ctx, s, 0)
	assert.False(t, ok)

	pos, ok = Get[Position](ctx, s, 5)
	require.True(t, ok)
	defer pos.Release()
	assert.Equal(t, float32(1), pos.Get().X)
	assert.Equal(t, float32(2), pos.Get().Y)
}

func TestGetMutVisibility(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 1, Position{X: 1, Y: 1})

	w, ok := GetMut[Position](ctx, s, 1)
	require.True(t, ok)
	w.Get().X = 10
	w.Release()

	r, ok := Get[Position](ctx, s, 1)
	require.True(t, ok)
	defer r.Release()
	assert.Equal(t, Position{X: 10, Y: 1}, r.Value())
}

func TestAbsentCasesLookIdentical(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()

	// Type never inserted.
	_, ok := Get[Velocity](ctx, s, 1)
	assert.False(t, ok)
	_, ok = GetMut[Velocity](ctx, s, 1)
	assert.False(t, ok)

	// Type known, entity never inserted.
	Insert(s, 2, Velocity{})
	_, ok = Get[Velocity](ctx, s, 1)
	assert.False(t, ok)

	// Inserted then removed.
	Insert(s, 1, Velocity{})
	Remove[Velocity](s, 1)
	_, ok = Get[Velocity](ctx, s, 1)
	assert.False(t, ok)
}

func TestRemoveThenReinsert(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 3, Position{X: 1})
	Remove[Position](s, 3)
	Insert(s, 3, Position{X: 2})

	r, ok := Get[Position](ctx, s, 3)
	require.True(t, ok)
	defer r.Release()
	assert.Equal(t, float32(2), r.Get().X)
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 1, Position{X: 1})
	Insert(s, 2, Position{X: 2})

	Remove[Position](s, 1)
	assert.NotPanics(t, func() { Remove[Position](s, 1) })
	assert.NotPanics(t, func() { Remove[Velocity](s, 1) })

	r, ok := Get[Position](ctx, s, 2)
	require.True(t, ok)
	defer r.Release()
	assert.Equal(t, float32(2), r.Get().X)
	assert.Equal(t, 1, Len[Position](s))
}

func TestEntityIsolation(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 1, Position{X: 1})
	Insert(s, 2, Position{X: 2})

	Insert(s, 1, Position{X: 100})
	Remove[Position](s, 1)

	r, ok := Get[Position](ctx, s, 2)
	require.True(t, ok)
	defer r.Release()
	assert.Equal(t, Position{X: 2}, r.Value())
}

func TestEntityIsolationAcrossGenerations(t *testing.T) {
	ctx := testCtx(t)
	live := EntityID(5)
	other := NewEntityID(5, 1)

	for _, order := range [][2]EntityID{{live, other}, {other, live}} {
		s := NewStorage()
		Insert(s, order[0], Position{X: 1})
		Insert(s, order[1], Position{X: 2})
		assert.Equal(t, 2, Len[Position](s))

		r, ok := Get[Position](ctx, s, order[0])
		require.True(t, ok, "inserting %v must not affect %v", order[1], order[0])
		assert.Equal(t, Position{X: 1}, r.Value())
		r.Release()

		Remove[Position](s, order[1])
		r, ok = Get[Position](ctx, s, order[0])
		require.True(t, ok)
		assert.Equal(t, Position{X: 1}, r.Value())
		r.Release()
	}
}

func TestTypeIsolation(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			Insert(s, EntityID(i), Position{X: float32(i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			Insert(s, EntityID(i), Velocity{Y: float32(i)})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, s.TypeCount())
	assert.Equal(t, 64, Len[Position](s))
	assert.Equal(t, 64, Len[Velocity](s))

	// Holding one type's writer never blocks another type on the same entity.
	w, ok := GetMut[Position](ctx, s, 7)
	require.True(t, ok)
	defer w.Release()

	v, ok := TryGetMut[Velocity](s, 7)
	require.True(t, ok)
	assert.Equal(t, float32(7), v.Get().Y)
	v.Release()
}

func TestReaderWaitsForWriter(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 0, Position{})

	w, ok := GetMut[Position](ctx, s, 0)
	require.True(t, ok)

	got := make(chan Position, 1)
	go func() {
		r, ok := Get[Position](ctx, s, 0)
		if !ok {
			close(got)
			return
		}
		defer r.Release()
		got <- r.Value()
	}()

	select {
	case <-got:
		t.Fatal("reader acquired the cell while a writer held it")
	case <-time.After(50 * time.Millisecond):
	}

	w.Get().X = 9
	w.Release()

	select {
	case p, ok := <-got:
		require.True(t, ok)
		assert.Equal(t, float32(9), p.X)
	case <-time.After(2 * time.Second):
		t.Fatal("reader never acquired the cell")
	}
}

func TestWritersSerialize(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 0, Position{})

	var inside atomic.Int32
	var overlap atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, ok := GetMut[Position](ctx, s, 0)
			if !ok {
				return
			}
			defer w.Release()
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			w.Get().X++
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.False(t, overlap.Load())
	r, ok := Get[Position](ctx, s, 0)
	require.True(t, ok)
	defer r.Release()
	assert.Equal(t, float32(32), r.Get().X)
}

func TestReadersShare(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 0, Position{X: 3})

	a, ok := Get[Position](ctx, s, 0)
	require.True(t, ok)
	defer a.Release()

	b, ok := TryGet[Position](s, 0)
	require.True(t, ok)
	defer b.Release()

	_, ok = TryGetMut[Position](s, 0)
	assert.False(t, ok)
}

func TestCancelledWaitHoldsNothing(t *testing.T) {
	s := NewStorage()
	Insert(s, 0, Position{})

	w, ok := GetMut[Position](testCtx(t), s, 0)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok = Get[Position](ctx, s, 0)
	assert.False(t, ok)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)

	w.Release()

	again, ok := TryGetMut[Position](s, 0)
	require.True(t, ok, "abandoned wait must not leave the cell locked")
	again.Release()
}

func TestGuardOutlivesRemoval(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 0, Position{X: 1})

	w, ok := GetMut[Position](ctx, s, 0)
	require.True(t, ok)

	Remove[Position](s, 0)
	assert.False(t, Has[Position](s, 0))

	// The guard still owns a live cell.
	w.Get().X = 2
	assert.Equal(t, float32(2), w.Get().X)
	w.Release()

	_, ok = Get[Position](ctx, s, 0)
	assert.False(t, ok)
}

func TestWaiterSeesRemoval(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 0, Position{})

	w, ok := GetMut[Position](ctx, s, 0)
	require.True(t, ok)

	result := make(chan bool, 1)
	go func() {
		r, ok := Get[Position](ctx, s, 0)
		if ok {
			r.Release()
		}
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	Remove[Position](s, 0)
	w.Release()

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never returned")
	}
}

func TestWaiterSeesOverwrite(t *testing.T) {
	ctx := testCtx(t)
	s := NewStorage()
	Insert(s, 0, Position{X: 1})

	w, ok := GetMut[Position](ctx, s, 0)
	require.True(t, ok)

	result := make(chan Position, 1)
	go func() {
		r, ok := Get[Position](ctx, s, 0)
		if !ok {
			close(result)
			return
		}
		defer r.Release()
		result <- r.Value()
	}()

	time.Sleep(20 * time.Millisecond)
	Insert(s, 0, Position{X: 2})
	w.Release()

	select {
	case p, ok := <-result:
		require.True(t, ok)
		assert.Equal(t, float32(2), p.X)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never returned")
	}
}

func TestRemoveAll(t *testing.T) {
	s := NewStorage()
	Insert(s, 1, Position{})
	Insert(s, 1, Velocity{})
	Insert(s, 2, Velocity{})

	s.RemoveAll(1)
	assert.False(t, Has[Position](s, 1))
	assert.False(t, Has[Velocity](s, 1))
	assert.True(t, Has[Velocity](s, 2))
	assert.Equal(t, []EntityID{2}, Entities[Velocity](s))
	assert.Nil(t, Entities[string](s))
}
