package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ferrumgo/server/internal/net/packet"
)

type statusResponse struct {
	Version     statusVersion `json:"version"`
	Players     statusPlayers `json:"players"`
	Description statusText    `json:"description"`
}

type statusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type statusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

type statusText struct {
	Text string `json:"text"`
}

// ProtocolVersion is reported in status responses.
const ProtocolVersion = 767

// HandleStatusRequest answers the server list ping with a JSON status.
func HandleStatusRequest(ctx context.Context, conn packet.Conn, _ *packet.Reader, deps *Deps) error {
	online := onlinePlayers(deps)
	motd := deps.Config.Server.MOTD
	if deps.Scripting != nil {
		motd = deps.Scripting.MOTD(online, motd)
	}

	body, err := json.Marshal(statusResponse{
		Version:     statusVersion{Name: deps.Config.Server.Name, Protocol: ProtocolVersion},
		Players:     statusPlayers{Max: deps.Config.Server.MaxPlayers, Online: online},
		Description: statusText{Text: motd},
	})
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	w := packet.NewWriter(StatusResponseID)
	w.WriteString(string(body))
	return sendPacket(ctx, deps, conn, w)
}

// HandlePing echoes the client's payload and ends the status exchange.
func HandlePing(ctx context.Context, conn packet.Conn, r *packet.Reader, deps *Deps) error {
	payload := r.ReadI64()
	if err := r.Err(); err != nil {
		return fmt.Errorf("decode ping: %w", err)
	}
	w := packet.NewWriter(PongResponseID)
	w.WriteI64(payload)
	if err := sendPacket(ctx, deps, conn, w); err != nil {
		return err
	}
	closeAfterFlush(ctx, deps, conn)
	return nil
}
