package net

import (
	"errors"

	"github.com/ferrumgo/server/internal/net/packet"
)

var ErrSessionClosed = errors.New("session closed")

// StreamWriter is the component through which systems send packets to a
// connection. It is stored under the connection's entity id; taking it with
// ecs.GetMut serialises writers so packets from concurrent systems are never
// interleaved mid-sequence.
type StreamWriter struct {
	sess *Session
	sent uint64
}

func NewStreamWriter(sess *Session) StreamWriter {
	return StreamWriter{sess: sess}
}

// SendPacket queues one packet. It fails once the connection has closed.
func (w *StreamWriter) SendPacket(p *packet.Writer) error {
	if w.sess == nil || !w.sess.Send(p.Bytes()) {
		return ErrSessionClosed
	}
	w.sent++
	return nil
}

// Sent returns how many packets have been queued through this writer.
func (w *StreamWriter) Sent() uint64 { return w.sent }

// Disconnect closes the connection after packets already queued are written.
func (w *StreamWriter) Disconnect() {
	if w.sess != nil {
		w.sess.CloseAfterFlush()
	}
}
