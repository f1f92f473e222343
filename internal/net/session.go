package net

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ferrumgo/server/internal/core/ecs"
	"github.com/ferrumgo/server/internal/net/packet"
	"go.uber.org/zap"
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; packets are handed to the InputSystem via InQueue
// and written from OutQueue. The session id doubles as the connection's
// entity id in the ECS storage.
type Session struct {
	id     ecs.EntityID
	conn   net.Conn
	reader *bufio.Reader

	state atomic.Int32 // packet.State stored as int32

	InQueue  chan []byte // InputSystem reads packets from here
	OutQueue chan []byte // writer goroutine reads from here

	IP string

	readTimeout  time.Duration
	writeTimeout time.Duration

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

func NewSession(conn net.Conn, id ecs.EntityID, cfg SessionConfig, log *zap.Logger) *Session {
	s := &Session{
		id:           id,
		conn:         conn,
		reader:       bufio.NewReader(conn),
		InQueue:      make(chan []byte, cfg.InQueueSize),
		OutQueue:     make(chan []byte, cfg.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		closeCh:      make(chan struct{}),
		log:          log.With(zap.Stringer("conn", id)),
	}
	s.state.Store(int32(packet.StateHandshake))
	return s
}

// SessionConfig sizes a session's queues and socket deadlines.
type SessionConfig struct {
	InQueueSize  int
	OutQueueSize int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (s *Session) ID() uint64               { return uint64(s.id) }
func (s *Session) Entity() ecs.EntityID     { return s.id }
func (s *Session) Log() *zap.Logger         { return s.log }
func (s *Session) Done() <-chan struct{}    { return s.closeCh }
func (s *Session) State() packet.State      { return packet.State(s.state.Load()) }
func (s *Session) SetState(st packet.State) { s.state.Store(int32(st)) }

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send queues an encoded packet body for the writer goroutine. Non-blocking:
// if OutQueue is full, the session is disconnected (backpressure). Returns
// false if the packet was not queued.
func (s *Session) Send(data []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.OutQueue <- data:
		return true
	default:
		s.log.Warn("output queue full, dropping slow connection")
		s.Close()
		return false
	}
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

// CloseAfterFlush closes the session once every packet queued so far has
// been written, so a disconnect reason reaches the client.
func (s *Session) CloseAfterFlush() {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- nil:
	default:
		s.Close()
	}
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop reads frames from the TCP connection and pushes them onto InQueue.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		payload, err := ReadFrame(s.reader)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		// Block until InQueue has space or the session closes. Dropping packets
		// would desynchronise the protocol state machine.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop reads packets from OutQueue and writes them as frames.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if data == nil {
				return // CloseAfterFlush marker
			}
			if !s.writeOnePacket(data) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeOnePacket(data []byte) bool {
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := WriteFrame(s.conn, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
