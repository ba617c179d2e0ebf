// Package server wires the chat hub to its network listeners.
package server

import (
	"log/slog"
	"sync"

	"github.com/omochice/line-chat/internal/chat"
	"github.com/omochice/line-chat/internal/transport/tcp"
	"github.com/omochice/line-chat/internal/transport/ws"
	"golang.org/x/sync/errgroup"
)

// Server is the chat server: one Hub shared by a plain TCP listener and, when
// configured, a WebSocket listener.
type Server struct {
	cfg Config
	log *slog.Logger
	hub *chat.Hub

	tcp *tcp.Server
	ws  *tcp.Server

	stopOnce sync.Once
}

// New creates a Server from cfg. Nothing is bound until Listen.
func New(cfg Config, log *slog.Logger) *Server {
	hub := chat.NewHub(log)
	s := &Server{
		cfg: cfg,
		log: log,
		hub: hub,
		tcp: tcp.New(cfg.Address(), hub, log, tcp.WithWriteTimeout(cfg.WriteTimeout)),
	}
	if cfg.WebSocketAddr != "" {
		s.ws = ws.New(cfg.WebSocketAddr, hub, log, cfg.WriteTimeout)
	}
	return s
}

// Listen binds every configured listener. On failure nothing stays bound.
func (s *Server) Listen() error {
	if err := s.tcp.Listen(); err != nil {
		return err
	}
	if s.ws != nil {
		if err := s.ws.Listen(); err != nil {
			s.tcp.Stop()
			return err
		}
	}
	return nil
}

// Serve runs all accept loops until Stop or until one listener fails; a
// failure stops the others and is returned.
func (s *Server) Serve() error {
	var g errgroup.Group
	for _, l := range s.listeners() {
		g.Go(func() error {
			err := l.Serve()
			if err != nil {
				s.Stop()
			}
			return err
		})
	}
	return g.Wait()
}

// Start binds and serves.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Stop closes every session and listener and waits for them to finish.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		var wg sync.WaitGroup
		for _, l := range s.listeners() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.Stop()
			}()
		}
		wg.Wait()
		s.log.Info("Chat server stopped")
	})
}

// Addr returns the TCP listening address.
func (s *Server) Addr() string {
	return s.tcp.Addr()
}

// WebSocketAddr returns the WebSocket listening address, or "" when disabled.
func (s *Server) WebSocketAddr() string {
	if s.ws == nil {
		return ""
	}
	return s.ws.Addr()
}

// ClientCount returns the number of participants currently in the chat.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

func (s *Server) listeners() []*tcp.Server {
	if s.ws == nil {
		return []*tcp.Server{s.tcp}
	}
	return []*tcp.Server{s.tcp, s.ws}
}
