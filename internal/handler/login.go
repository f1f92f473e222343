package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ferrumgo/server/internal/component"
	"github.com/ferrumgo/server/internal/core/ecs"
	"github.com/ferrumgo/server/internal/core/event"
	"github.com/ferrumgo/server/internal/net"
	"github.com/ferrumgo/server/internal/net/packet"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxUsernameLen is the longest accepted player name.
const MaxUsernameLen = 16

// SpawnPosition is where newly logged-in players are placed.
var SpawnPosition = component.Position{X: 0, Y: 64, Z: 0}

// HandleLoginStart processes Login Start: it runs the admission hook, records
// the player's identity on the connection entity, and replies with Login
// Success. A connection that closed in the meantime is not an error worth
// more than a debug line; the caller sees ErrConnectionClosed.
func HandleLoginStart(ctx context.Context, conn packet.Conn, r *packet.Reader, deps *Deps) error {
	username := r.ReadString()
	id := r.ReadUUID()
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode login start: %w", err)
	}
	log := deps.Log.With(zap.Uint64("conn", conn.ID()))
	log.Info("handling login start", zap.String("username", username))

	if username == "" || len(username) > MaxUsernameLen {
		return disconnectLogin(ctx, deps, conn, "Invalid username")
	}
	if id == uuid.Nil {
		id = component.OfflineUUID(username)
	}

	if limit := deps.Config.Server.MaxPlayers; limit > 0 && onlinePlayers(deps) >= limit {
		return disconnectLogin(ctx, deps, conn, "Server is full")
	}
	if deps.Scripting != nil {
		if d := deps.Scripting.OnLoginStart(username, id.String()); !d.Allowed {
			reason := d.Reason
			if reason == "" {
				reason = "Login refused"
			}
			log.Info("login refused by script", zap.String("username", username), zap.String("reason", reason))
			return disconnectLogin(ctx, deps, conn, reason)
		}
	}

	entity := ecs.EntityID(conn.ID())
	ecs.Insert(deps.World.Storage(), entity, component.PlayerIdentity{UUID: id, Username: username})

	w := packet.NewWriter(LoginSuccessID)
	w.WriteUUID(id)
	w.WriteString(username)
	w.WriteVarInt(0)  // profile properties
	w.WriteBool(true) // strict error handling
	if err := sendPacket(ctx, deps, conn, w); err != nil {
		ecs.Remove[component.PlayerIdentity](deps.World.Storage(), entity)
		if errors.Is(err, ErrConnectionClosed) {
			log.Debug("connection closed before login success", zap.String("username", username))
		}
		return err
	}
	return nil
}

// HandleLoginAcknowledged finishes login: the connection enters play and the
// player entity gets its spawn components.
func HandleLoginAcknowledged(ctx context.Context, conn packet.Conn, _ *packet.Reader, deps *Deps) error {
	entity := ecs.EntityID(conn.ID())
	ident, ok := ecs.Get[component.PlayerIdentity](ctx, deps.World.Storage(), entity)
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("login acknowledged before login success")
	}
	who := ident.Value()
	ident.Release()

	ecs.Insert(deps.World.Storage(), entity, SpawnPosition)
	ecs.Insert(deps.World.Storage(), entity, component.Velocity{})
	conn.SetState(packet.StatePlay)

	event.Emit(deps.Events, event.PlayerJoined{Entity: entity, UUID: who.UUID, Username: who.Username})
	deps.Log.Info("player joined",
		zap.String("name", who.Username),
		zap.Stringer("uuid", who.UUID),
		zap.Stringer("entity", entity),
	)
	return nil
}

// disconnectLogin sends a login-state Disconnect with a text reason and
// closes the connection once it is written.
func disconnectLogin(ctx context.Context, deps *Deps, conn packet.Conn, reason string) error {
	text, err := json.Marshal(statusText{Text: reason})
	if err != nil {
		return fmt.Errorf("encode disconnect: %w", err)
	}
	w := packet.NewWriter(LoginDisconnectID)
	w.WriteString(string(text))
	if err := sendPacket(ctx, deps, conn, w); err != nil {
		return err
	}
	closeAfterFlush(ctx, deps, conn)
	return nil
}

func closeAfterFlush(ctx context.Context, deps *Deps, conn packet.Conn) {
	sw, ok := ecs.GetMut[net.StreamWriter](ctx, deps.World.Storage(), ecs.EntityID(conn.ID()))
	if !ok {
		conn.Close()
		return
	}
	defer sw.Release()
	sw.Get().Disconnect()
}
