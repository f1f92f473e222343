package packet

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// State is the connection's current protocol phase. Packet ids are only
// unique within a state.
type State int

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StatePlay
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateStatus:
		return "Status"
	case StateLogin:
		return "Login"
	case StatePlay:
		return "Play"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Conn is the view of a connection that handlers receive. The concrete
// session lives in net/; handlers reach its writer through the ECS storage.
type Conn interface {
	ID() uint64
	State() State
	SetState(State)
	Close()
}

// HandlerFunc is the callback signature for packet handlers.
type HandlerFunc func(ctx context.Context, conn Conn, r *Reader) error

type handlerKey struct {
	state State
	id    int32
}

// Registry maps (state, packet id) to handlers.
type Registry struct {
	handlers map[handlerKey]HandlerFunc
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[handlerKey]HandlerFunc),
		log:      log,
	}
}

// Register maps a packet id in the given state to a handler. Registration
// happens at startup, before any Dispatch.
func (reg *Registry) Register(state State, id int32, fn HandlerFunc) {
	reg.handlers[handlerKey{state: state, id: id}] = fn
}

func (reg *Registry) Len() int { return len(reg.handlers) }

// Dispatch decodes the packet id from data, finds the handler for the
// connection's state, and calls it. Unknown ids are ignored.
func (reg *Registry) Dispatch(ctx context.Context, conn Conn, data []byte) error {
	if len(data) == 0 {
		return errors.New("empty packet")
	}
	r := NewReader(data)
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode packet id: %w", err)
	}
	state := conn.State()
	reg.log.Debug("packet received",
		zap.Uint64("conn", conn.ID()),
		zap.Int32("id", r.ID()),
		zap.Int("size", len(data)),
		zap.Stringer("state", state),
	)

	fn, ok := reg.handlers[handlerKey{state: state, id: r.ID()}]
	if !ok {
		reg.log.Debug("unknown packet id", zap.Int32("id", r.ID()), zap.Stringer("state", state))
		return nil
	}
	return reg.safeCall(ctx, fn, conn, r, state)
}

// safeCall executes a handler with panic recovery so one bad packet cannot
// take down the dispatching goroutine.
func (reg *Registry) safeCall(ctx context.Context, fn HandlerFunc, conn Conn, r *Reader, state State) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Int32("id", r.ID()),
				zap.Stringer("state", state),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for packet %#x in %s: %v", r.ID(), state, rec)
		}
	}()
	return fn(ctx, conn, r)
}
