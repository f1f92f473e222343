package handler

import (
	"context"
	"errors"

	"github.com/ferrumgo/server/internal/component"
	"github.com/ferrumgo/server/internal/config"
	"github.com/ferrumgo/server/internal/core/ecs"
	"github.com/ferrumgo/server/internal/core/event"
	"github.com/ferrumgo/server/internal/net"
	"github.com/ferrumgo/server/internal/net/packet"
	"github.com/ferrumgo/server/internal/scripting"
	"go.uber.org/zap"
)

// ErrConnectionClosed means the connection's StreamWriter is gone: the
// client disconnected and cleanup already ran. Callers treat it as non-fatal.
var ErrConnectionClosed = errors.New("connection closed")

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *ecs.World
	Scripting *scripting.Engine
	Events    *event.Bus
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.StateHandshake, HandshakeID,
		func(ctx context.Context, conn packet.Conn, r *packet.Reader) error {
			return HandleHandshake(ctx, conn, r, deps)
		},
	)

	reg.Register(packet.StateStatus, StatusRequestID,
		func(ctx context.Context, conn packet.Conn, r *packet.Reader) error {
			return HandleStatusRequest(ctx, conn, r, deps)
		},
	)
	reg.Register(packet.StateStatus, PingRequestID,
		func(ctx context.Context, conn packet.Conn, r *packet.Reader) error {
			return HandlePing(ctx, conn, r, deps)
		},
	)

	reg.Register(packet.StateLogin, LoginStartID,
		func(ctx context.Context, conn packet.Conn, r *packet.Reader) error {
			return HandleLoginStart(ctx, conn, r, deps)
		},
	)
	reg.Register(packet.StateLogin, LoginAcknowledgedID,
		func(ctx context.Context, conn packet.Conn, r *packet.Reader) error {
			return HandleLoginAcknowledged(ctx, conn, r, deps)
		},
	)
}

// sendPacket writes w to the connection through its StreamWriter component.
func sendPacket(ctx context.Context, deps *Deps, conn packet.Conn, w *packet.Writer) error {
	sw, ok := ecs.GetMut[net.StreamWriter](ctx, deps.World.Storage(), ecs.EntityID(conn.ID()))
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrConnectionClosed
	}
	defer sw.Release()

	if err := sw.Get().SendPacket(w); err != nil {
		if errors.Is(err, net.ErrSessionClosed) {
			return ErrConnectionClosed
		}
		return err
	}
	return nil
}

// onlinePlayers counts connections that completed login.
func onlinePlayers(deps *Deps) int {
	return ecs.Len[component.PlayerIdentity](deps.World.Storage())
}
