package ecs

import (
	"sync/atomic"
)

// Ref is a shared, read-only view of one entity's T. It holds the cell's read
// lock until Release. The guard keeps the cell itself alive, so removing the
// component from Storage while a Ref is held is safe; the Ref keeps seeing
// the value it locked.
//
//	pos, ok := ecs.Get[component.Position](ctx, s, id)
//	if !ok {
//		return
//	}
//	defer pos.Release()
type Ref[T any] struct {
	cell     *Cell
	released atomic.Bool
}

// Get returns the component. The pointer must not be written through and
// must not be used after Release.
func (r *Ref[T]) Get() *T {
	if r.released.Load() {
		panic("ecs: Ref used after Release")
	}
	return valuePtr[T](r.cell)
}

// Value returns a copy of the component.
func (r *Ref[T]) Value() T {
	return *r.Get()
}

// Release drops the read lock. Calling it more than once is a no-op.
func (r *Ref[T]) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.cell.RUnlock()
	}
}

// RefMut is an exclusive, writable view of one entity's T. It holds the
// cell's write lock until Release.
type RefMut[T any] struct {
	cell     *Cell
	released atomic.Bool
}

// Get returns the component for in-place mutation. The pointer must not be
// used after Release.
func (r *RefMut[T]) Get() *T {
	if r.released.Load() {
		panic("ecs: RefMut used after Release")
	}
	return valuePtr[T](r.cell)
}

// Set overwrites the whole component.
func (r *RefMut[T]) Set(v T) {
	*r.Get() = v
}

// Release drops the write lock. Calling it more than once is a no-op.
func (r *RefMut[T]) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.cell.Unlock()
	}
}
