package ecs

import (
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// World is the top-level ECS container handed to every system. It owns the
// entity pool, the component storage, and a deferred destruction queue
// flushed by CleanupSystem each tick.
type World struct {
	pool    *EntityPool
	storage *Storage
	log     *zap.Logger

	mu           deadlock.Mutex // protects destroyQueue
	destroyQueue []EntityID
}

func NewWorld(log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		pool:         NewEntityPool(),
		storage:      NewStorage(),
		log:          log,
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool      { return w.pool }
func (w *World) Storage() *Storage      { return w.storage }
func (w *World) CreateEntity() EntityID { return w.pool.Create() }

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.mu.Lock()
	w.destroyQueue = append(w.destroyQueue, id)
	w.mu.Unlock()
}

// FlushDestroyQueue destroys all queued entities and clears their components.
// Called by CleanupSystem at the end of each tick. Returns how many were destroyed.
func (w *World) FlushDestroyQueue() int {
	w.mu.Lock()
	queue := w.destroyQueue
	w.destroyQueue = make([]EntityID, 0, cap(queue))
	w.mu.Unlock()

	for _, id := range queue {
		w.storage.RemoveAll(id)
		w.pool.Destroy(id)
		w.log.Debug("entity destroyed", zap.Stringer("entity", id))
	}
	return len(queue)
}
