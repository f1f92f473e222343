package handler

import (
	"context"
	"fmt"

	"github.com/ferrumgo/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleHandshake processes the opening Handshake packet and moves the
// connection into the requested state.
func HandleHandshake(_ context.Context, conn packet.Conn, r *packet.Reader, deps *Deps) error {
	protocol := r.ReadVarInt()
	address := r.ReadString()
	port := r.ReadU16()
	next := r.ReadVarInt()
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode handshake: %w", err)
	}

	deps.Log.Debug("handshake",
		zap.Uint64("conn", conn.ID()),
		zap.Int32("protocol", protocol),
		zap.String("address", address),
		zap.Uint16("port", port),
		zap.Int32("next", next),
	)

	switch next {
	case nextStateStatus:
		conn.SetState(packet.StateStatus)
	case nextStateLogin, nextStateTransfer:
		conn.SetState(packet.StateLogin)
	default:
		return fmt.Errorf("handshake: invalid next state %d", next)
	}
	return nil
}
