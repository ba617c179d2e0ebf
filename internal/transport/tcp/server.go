package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/omochice/line-chat/internal/chat"
	"github.com/samber/lo"
)

// ConnFactory turns an accepted socket into a chat connection. It runs on the
// connection's own goroutine, so it may block on a handshake.
type ConnFactory func(conn net.Conn) (chat.Conn, error)

// Option configures a Server.
type Option func(s *Server)

// WithWriteTimeout bounds every write of the default line connection.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.writeTimeout = timeout }
}

// WithConnFactory replaces the default newline framing, e.g. with WebSocket.
func WithConnFactory(factory ConnFactory) Option {
	return func(s *Server) { s.factory = factory }
}

// WithName labels log lines of this listener.
func WithName(name string) Option {
	return func(s *Server) { s.name = name }
}

// Server handles TCP connections and delegates to Hub.
// Every accepted socket is tracked until its session ends so Stop can
// force-close the ones still open.
type Server struct {
	address      string
	name         string
	listener     net.Listener
	hub          *chat.Hub
	log          *slog.Logger
	factory      ConnFactory
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	stopping bool
	stopOnce sync.Once
}

// New creates a TCP server that uses the provided Hub.
func New(address string, hub *chat.Hub, log *slog.Logger, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		address: address,
		name:    "tcp",
		hub:     hub,
		ctx:     ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
		conns:   make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.factory == nil {
		s.factory = func(conn net.Conn) (chat.Conn, error) {
			return NewConnWithTimeout(conn, s.writeTimeout), nil
		}
	}
	s.log = log.With("transport", s.name)
	return s
}

// Listen binds the listening socket without accepting yet.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start %s server: %w", s.name, err)
	}
	s.listener = listener
	s.log.Info("Server listening", "address", listener.Addr().String())
	return nil
}

// Start binds and serves until Stop or a fatal listener error.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve runs the accept loop on a listener bound by Listen. It returns nil
// after Stop. Any other accept failure is fatal: every session is closed and
// the error is returned.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.log.Warn("Failed to accept connection", "error", err)
				continue
			}

			s.log.Error("Listener failed, shutting down", "error", err)
			s.Stop()
			return fmt.Errorf("accept on %s: %w", s.address, err)
		}

		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		go s.handle(conn)
	}
}

// Stop closes every open connection, releases the listener and waits for all
// sessions to finish.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.cancel()

		s.mu.Lock()
		s.stopping = true
		conns := lo.Keys(s.conns)
		s.mu.Unlock()

		for _, conn := range conns {
			_ = conn.Close()
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.log.Info("Server stopped", "closed_connections", len(conns))
	})
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ConnCount returns the number of tracked sockets, named or not.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) handle(raw net.Conn) {
	defer s.wg.Done()
	defer s.untrack(raw)

	conn, err := s.factory(raw)
	if err != nil {
		s.log.Warn("Failed to set up connection", "remote", raw.RemoteAddr().String(), "error", err)
		_ = raw.Close()
		return
	}

	chat.NewSession(conn, s.hub, s.log).Run(s.ctx)
}
