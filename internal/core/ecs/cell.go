package ecs

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// maxReaders bounds concurrent readers of one cell. A writer acquires the
// whole weight, which makes it exclusive against readers and other writers.
const maxReaders = 1 << 30

// TypeMismatchError reports a typed access to a cell holding another type.
// It only surfaces through a panic: Storage keys sets by the same type it
// stamps on each cell, so a mismatch means the storage itself is corrupt.
type TypeMismatchError struct {
	Want reflect.Type
	Got  reflect.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("ecs: component cell holds %v, accessed as %v", e.Got, e.Want)
}

// typeOf returns the type tag for T. Using the pointer-to-T element keeps
// interface types distinct from whatever concrete value they hold.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Cell owns one component value behind a reader/writer lock. Any number of
// readers or exactly one writer may hold it. Waiters are served strictly in
// arrival order: a queued writer blocks readers that arrive after it.
type Cell struct {
	tag      reflect.Type
	value    any // always *T where T is tag
	sem      *semaphore.Weighted
	detached atomic.Bool
}

func newCell[T any](v T) *Cell {
	p := new(T)
	*p = v
	return &Cell{
		tag:   typeOf[T](),
		value: p,
		sem:   semaphore.NewWeighted(maxReaders),
	}
}

// Type returns the concrete component type recorded at insertion.
func (c *Cell) Type() reflect.Type { return c.tag }

// RLock waits for shared access. It returns ctx.Err() if ctx ends first, in
// which case nothing is held.
func (c *Cell) RLock(ctx context.Context) error {
	return c.sem.Acquire(ctx, 1)
}

func (c *Cell) TryRLock() bool { return c.sem.TryAcquire(1) }

func (c *Cell) RUnlock() { c.sem.Release(1) }

// Lock waits for exclusive access. It returns ctx.Err() if ctx ends first, in
// which case nothing is held.
func (c *Cell) Lock(ctx context.Context) error {
	return c.sem.Acquire(ctx, maxReaders)
}

func (c *Cell) TryLock() bool { return c.sem.TryAcquire(maxReaders) }

func (c *Cell) Unlock() { c.sem.Release(maxReaders) }

// Detached reports whether the cell has been removed or replaced in its set.
// Guards already handed out stay valid; new lookups no longer reach it.
func (c *Cell) Detached() bool { return c.detached.Load() }

func (c *Cell) detach() { c.detached.Store(true) }

// valuePtr performs the checked downcast from the erased value to *T.
func valuePtr[T any](c *Cell) *T {
	if want := typeOf[T](); c.tag != want {
		panic(&TypeMismatchError{Want: want, Got: c.tag})
	}
	p, ok := c.value.(*T)
	if !ok {
		panic(&TypeMismatchError{Want: typeOf[T](), Got: reflect.TypeOf(c.value)})
	}
	return p
}
