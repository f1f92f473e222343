package ecs

import (
	"context"
	"reflect"
	"sync"

	"github.com/sasha-s/go-deadlock"
)

// componentSet is the storage for one component type. mu is the structural
// lock: it guards which entity maps to which cell, never a cell's contents,
// and is never held while waiting on a cell.
type componentSet struct {
	mu  deadlock.RWMutex
	set *SparseSet[*Cell]
}

func newComponentSet() *componentSet {
	return &componentSet{set: NewSparseSet[*Cell]()}
}

func (cs *componentSet) lookup(id EntityID) *Cell {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	c, _ := cs.set.Get(id)
	return c
}

func (cs *componentSet) remove(id EntityID) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if c, ok := cs.set.Remove(id); ok {
		c.detach()
	}
}

// Storage maps each component type to its sparse set of cells. Sets are
// created the first time a type is inserted and live as long as the Storage.
// Different types never contend; different entities of one type contend only
// on the brief structural lock, never on each other's cells.
type Storage struct {
	sets sync.Map // reflect.Type -> *componentSet
}

func NewStorage() *Storage {
	return &Storage{}
}

func (s *Storage) set(t reflect.Type) *componentSet {
	if v, ok := s.sets.Load(t); ok {
		return v.(*componentSet)
	}
	return nil
}

func (s *Storage) setOrCreate(t reflect.Type) *componentSet {
	if cs := s.set(t); cs != nil {
		return cs
	}
	v, _ := s.sets.LoadOrStore(t, newComponentSet())
	return v.(*componentSet)
}

// TypeCount returns how many component types have been inserted so far.
func (s *Storage) TypeCount() int {
	n := 0
	s.sets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// RemoveAll drops every component of id across all types.
func (s *Storage) RemoveAll(id EntityID) {
	s.sets.Range(func(_, v any) bool {
		v.(*componentSet).remove(id)
		return true
	})
}

// Insert stores v as id's T, replacing any existing T. A replaced value lives
// on only for guards that already hold it; new lookups see v.
func Insert[T any](s *Storage, id EntityID, v T) {
	cs := s.setOrCreate(typeOf[T]())
	c := newCell(v)

	cs.mu.Lock()
	prev, replaced := cs.set.Insert(id, c)
	cs.mu.Unlock()

	if replaced {
		prev.detach()
	}
}

// Get waits for shared access to id's T. It reports false when the component
// is absent, for an unknown type and an unknown entity alike, and when ctx
// ends before the lock is acquired.
func Get[T any](ctx context.Context, s *Storage, id EntityID) (*Ref[T], bool) {
	cs := s.set(typeOf[T]())
	if cs == nil {
		return nil, false
	}
	for {
		c := cs.lookup(id)
		if c == nil {
			return nil, false
		}
		if err := c.RLock(ctx); err != nil {
			return nil, false
		}
		if c.Detached() {
			// Removed or replaced while we waited; look again.
			c.RUnlock()
			continue
		}
		return &Ref[T]{cell: c}, true
	}
}

// GetMut waits for exclusive access to id's T. Absence and cancellation are
// reported the same way as Get.
func GetMut[T any](ctx context.Context, s *Storage, id EntityID) (*RefMut[T], bool) {
	cs := s.set(typeOf[T]())
	if cs == nil {
		return nil, false
	}
	for {
		c := cs.lookup(id)
		if c == nil {
			return nil, false
		}
		if err := c.Lock(ctx); err != nil {
			return nil, false
		}
		if c.Detached() {
			c.Unlock()
			continue
		}
		return &RefMut[T]{cell: c}, true
	}
}

// TryGet is Get without waiting: it reports false if a writer holds or is
// queued for the cell.
func TryGet[T any](s *Storage, id EntityID) (*Ref[T], bool) {
	cs := s.set(typeOf[T]())
	if cs == nil {
		return nil, false
	}
	c := cs.lookup(id)
	if c == nil || !c.TryRLock() {
		return nil, false
	}
	if c.Detached() {
		c.RUnlock()
		return nil, false
	}
	return &Ref[T]{cell: c}, true
}

// TryGetMut is GetMut without waiting.
func TryGetMut[T any](s *Storage, id EntityID) (*RefMut[T], bool) {
	cs := s.set(typeOf[T]())
	if cs == nil {
		return nil, false
	}
	c := cs.lookup(id)
	if c == nil || !c.TryLock() {
		return nil, false
	}
	if c.Detached() {
		c.Unlock()
		return nil, false
	}
	return &RefMut[T]{cell: c}, true
}

// Remove drops id's T. No-op if the type or the slot does not exist.
func Remove[T any](s *Storage, id EntityID) {
	if cs := s.set(typeOf[T]()); cs != nil {
		cs.remove(id)
	}
}

func Has[T any](s *Storage, id EntityID) bool {
	return s.cellOf(typeOf[T](), id) != nil
}

func (s *Storage) cellOf(t reflect.Type, id EntityID) *Cell {
	cs := s.set(t)
	if cs == nil {
		return nil
	}
	return cs.lookup(id)
}

// Len returns how many entities currently have a T.
func Len[T any](s *Storage) int {
	cs := s.set(typeOf[T]())
	if cs == nil {
		return 0
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.set.Len()
}

// Entities returns a snapshot of the entities that have a T, in unspecified
// order. Entries may be removed by the time the caller looks them up.
func Entities[T any](s *Storage) []EntityID {
	cs := s.set(typeOf[T]())
	if cs == nil {
		return nil
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.set.Entities()
}
