package event

import (
	"github.com/ferrumgo/server/internal/core/ecs"
	"github.com/google/uuid"
)

// PlayerJoined is emitted once a connection acknowledges login and enters play.
type PlayerJoined struct {
	Entity   ecs.EntityID
	UUID     uuid.UUID
	Username string
}

// ConnectionClosed is emitted when the input system drops a closed connection.
// Its entity is destroyed at the end of the same tick.
type ConnectionClosed struct {
	Entity ecs.EntityID
	IP     string
}
