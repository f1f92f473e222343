package ecs

const (
	pageBits = 10
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// sparsePage maps entity indices to dense slots. Entries hold slot+1 so the
// zero value means "no slot" and fresh pages need no initialisation.
type sparsePage [pageSize]uint32

// SparseSet is a cache-friendly storage for one component type keyed by
// EntityID. The sparse side is paged so a single high id does not allocate
// an index covering every lower id. Removal swap-removes, so iteration order
// is unspecified and changes after any Remove.
//
// Each index has one paged entry. Ids that share an index with the id
// already occupying that entry (other generations, or any id whose high bits
// differ) are kept in overflow, so distinct ids never share a slot.
//
// SparseSet is not synchronized; Storage guards each set with its own
// structural lock.
type SparseSet[T any] struct {
	pages    []*sparsePage
	overflow map[EntityID]int
	entities []EntityID
	values   []T
}

func NewSparseSet[T any]() *SparseSet[T] {
	return &SparseSet[T]{
		entities: make([]EntityID, 0, 64),
		values:   make([]T, 0, 64),
	}
}

// slot returns the dense index for id, or -1. The stored EntityID must match
// exactly, so an id with a stale generation does not alias its successor.
func (s *SparseSet[T]) slot(id EntityID) int {
	d, _ := s.locate(id)
	return d
}

// locate finds id's dense index and reports whether the paged entry (rather
// than overflow) points at it.
func (s *SparseSet[T]) locate(id EntityID) (int, bool) {
	if d := s.paged(id.Index()); d >= 0 && s.entities[d] == id {
		return d, true
	}
	if d, ok := s.overflow[id]; ok {
		return d, false
	}
	return -1, false
}

// paged returns the dense index stored in the page entry for idx, or -1.
func (s *SparseSet[T]) paged(idx uint32) int {
	p := int(idx >> pageBits)
	if p >= len(s.pages) || s.pages[p] == nil {
		return -1
	}
	return int(s.pages[p][idx&pageMask]) - 1
}

func (s *SparseSet[T]) setSlot(idx uint32, dense int) {
	p := int(idx >> pageBits)
	if p >= len(s.pages) {
		grown := make([]*sparsePage, p+1)
		copy(grown, s.pages)
		s.pages = grown
	}
	if s.pages[p] == nil {
		s.pages[p] = new(sparsePage)
	}
	s.pages[p][idx&pageMask] = uint32(dense + 1)
}

func (s *SparseSet[T]) clearSlot(idx uint32) {
	p := int(idx >> pageBits)
	if p < len(s.pages) && s.pages[p] != nil {
		s.pages[p][idx&pageMask] = 0
	}
}

// Insert places v at id's slot, allocating the slot if needed. It returns the
// previous value and true when id's existing slot was overwritten. Slots of
// other ids are never touched, whatever index they share with id.
func (s *SparseSet[T]) Insert(id EntityID, v T) (prev T, replaced bool) {
	if d := s.slot(id); d >= 0 {
		prev = s.values[d]
		s.values[d] = v
		return prev, true
	}
	s.entities = append(s.entities, id)
	s.values = append(s.values, v)
	d := len(s.entities) - 1
	if s.paged(id.Index()) < 0 {
		s.setSlot(id.Index(), d)
	} else {
		if s.overflow == nil {
			s.overflow = make(map[EntityID]int)
		}
		s.overflow[id] = d
	}
	return prev, false
}

func (s *SparseSet[T]) Get(id EntityID) (T, bool) {
	d := s.slot(id)
	if d < 0 {
		var zero T
		return zero, false
	}
	return s.values[d], true
}

func (s *SparseSet[T]) Has(id EntityID) bool {
	return s.slot(id) >= 0
}

// Remove deletes id's slot and returns the removed value. The last dense
// element is moved into the vacated position. No-op if id has no slot.
func (s *SparseSet[T]) Remove(id EntityID) (T, bool) {
	var zero T
	d, inPage := s.locate(id)
	if d < 0 {
		return zero, false
	}
	if inPage {
		s.clearSlot(id.Index())
	} else {
		delete(s.overflow, id)
	}

	removed := s.values[d]
	last := len(s.entities) - 1
	if d != last {
		moved := s.entities[last]
		s.entities[d] = moved
		s.values[d] = s.values[last]
		if s.paged(moved.Index()) == last {
			s.setSlot(moved.Index(), d)
		} else {
			s.overflow[moved] = d
		}
	}
	s.values[last] = zero // drop the reference held by the backing array
	s.entities = s.entities[:last]
	s.values = s.values[:last]
	return removed, true
}

func (s *SparseSet[T]) Len() int {
	return len(s.entities)
}

// Entities returns a copy of the dense id list.
func (s *SparseSet[T]) Entities() []EntityID {
	out := make([]EntityID, len(s.entities))
	copy(out, s.entities)
	return out
}

// Each calls fn for every slot in dense order. fn must not mutate the set.
func (s *SparseSet[T]) Each(fn func(EntityID, T)) {
	for i, id := range s.entities {
		fn(id, s.values[i])
	}
}
