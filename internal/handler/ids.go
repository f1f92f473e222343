package handler

// Serverbound packet ids, per state.
const (
	HandshakeID int32 = 0x00

	StatusRequestID int32 = 0x00
	PingRequestID   int32 = 0x01

	LoginStartID        int32 = 0x00
	LoginAcknowledgedID int32 = 0x03
)

// Clientbound packet ids, per state.
const (
	StatusResponseID int32 = 0x00
	PongResponseID   int32 = 0x01

	LoginDisconnectID int32 = 0x00
	LoginSuccessID    int32 = 0x02
)

// Handshake next-state values.
const (
	nextStateStatus   = 1
	nextStateLogin    = 2
	nextStateTransfer = 3
)
