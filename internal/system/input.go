package system

import (
	"context"
	"errors"
	"time"

	"github.com/ferrumgo/server/internal/core/ecs"
	"github.com/ferrumgo/server/internal/core/event"
	coresys "github.com/ferrumgo/server/internal/core/system"
	"github.com/ferrumgo/server/internal/handler"
	"github.com/ferrumgo/server/internal/net"
	"github.com/ferrumgo/server/internal/net/packet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SessionSource hands over freshly accepted sessions. *net.Server implements it.
type SessionSource interface {
	NewSessions() <-chan *net.Session
}

// InputSystem drains packet queues from all sessions and dispatches them
// through the packet registry. Sessions are served in parallel; packets of
// one session stay in order. Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *packet.Registry
	world      *ecs.World
	events     *event.Bus
	sessions   map[ecs.EntityID]*net.Session
	maxPerTick int
	log        *zap.Logger
}

// NewInputSystem wires the input phase. events may be nil.
func NewInputSystem(source SessionSource, registry *packet.Registry, world *ecs.World, events *event.Bus, maxPerTick int, log *zap.Logger) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = 32
	}
	return &InputSystem{
		source:     source,
		registry:   registry,
		world:      world,
		events:     events,
		sessions:   make(map[ecs.EntityID]*net.Session),
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Name() string         { return "input" }
func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

// Sessions returns how many connections the system is tracking.
func (s *InputSystem) Sessions() int { return len(s.sessions) }

func (s *InputSystem) Update(ctx context.Context, _ time.Duration) error {
	s.acceptNew()

	var g errgroup.Group
	for id, sess := range s.sessions {
		if sess.IsClosed() {
			// Packets read just before the disconnect are still dispatched.
			s.drain(ctx, sess)
			delete(s.sessions, id)
			s.world.MarkForDestruction(id)
			event.Emit(s.events, event.ConnectionClosed{Entity: id, IP: sess.IP})
			sess.Log().Debug("connection closed, entity queued for destruction")
			continue
		}
		g.Go(func() error {
			s.drain(ctx, sess)
			return nil
		})
	}
	return g.Wait()
}

func (s *InputSystem) acceptNew() {
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.sessions[sess.Entity()] = sess
		default:
			return
		}
	}
}

// drain dispatches up to maxPerTick queued packets of one session.
func (s *InputSystem) drain(ctx context.Context, sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			s.dispatch(ctx, sess, data)
		default:
			return
		}
	}
}

func (s *InputSystem) dispatch(ctx context.Context, sess *net.Session, data []byte) {
	err := s.registry.Dispatch(ctx, sess, data)
	switch {
	case err == nil:
	case errors.Is(err, handler.ErrConnectionClosed), sess.IsClosed():
		sess.Log().Debug("packet for closed connection", zap.Error(err))
	case ctx.Err() != nil:
		sess.Log().Debug("dispatch cancelled", zap.Error(err))
	default:
		sess.Log().Warn("packet dispatch failed, closing connection", zap.Error(err))
		sess.Close()
	}
}
