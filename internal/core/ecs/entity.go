package ecs

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"
)

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
// An id with generation 0 is just its index, so plain non-negative integers
// (connection ids, test fixtures) are valid entity ids.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }

func (id EntityID) String() string {
	if id.Generation() == 0 {
		return fmt.Sprintf("%d", id.Index())
	}
	return fmt.Sprintf("%d@%d", id.Index(), id.Generation())
}

// EntityPool manages entity allocation with generational indices and a free list.
// Safe for concurrent use: connections are accepted and imports run on
// goroutines other than the tick loop.
type EntityPool struct {
	mu          deadlock.Mutex
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

// Create returns a fresh id. Recycled indices come back with a bumped
// generation, so components stored under the old id never resolve for the new one.
func (p *EntityPool) Create() EntityID {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return NewEntityID(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
	}
	return NewEntityID(idx, p.generations[idx])
}

func (p *EntityPool) Alive(id EntityID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation()
}

func (p *EntityPool) Destroy(id EntityID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := id.Index()
	if idx >= p.nextIndex {
		return
	}
	if p.generations[idx] != id.Generation() {
		return // already destroyed (stale reference)
	}
	p.generations[idx]++
	p.freeList = append(p.freeList, idx)
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.nextIndex) - len(p.freeList)
}
