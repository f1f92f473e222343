package net

import (
	"net"

	"github.com/ferrumgo/server/internal/core/ecs"
	"go.uber.org/zap"
)

// Server accepts TCP connections and creates Sessions. Each connection gets
// an entity in the world and a StreamWriter component before it is handed to
// the InputSystem through NewSessions.
type Server struct {
	listener net.Listener
	world    *ecs.World
	newConns chan *Session
	cfg      SessionConfig
	log      *zap.Logger
	closeCh  chan struct{}
}

func NewServer(bindAddr string, world *ecs.World, cfg SessionConfig, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: ln,
		world:    world,
		newConns: make(chan *Session, 64),
		cfg:      cfg,
		log:      log,
		closeCh:  make(chan struct{}),
	}
	return s, nil
}

// AcceptLoop runs in its own goroutine until Shutdown.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}
		s.accept(conn)
	}
}

func (s *Server) accept(conn net.Conn) {
	id := s.world.CreateEntity()
	sess := NewSession(conn, id, s.cfg, s.log)
	ecs.Insert(s.world.Storage(), id, NewStreamWriter(sess))
	sess.Start()

	s.log.Info("connection accepted", zap.Stringer("conn", id), zap.String("ip", sess.IP))

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("connection queue full, rejecting")
		sess.Close()
		s.world.MarkForDestruction(id)
	}
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
