package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/omochice/line-chat/pkg/protocol"
)

// State is a step of the session lifecycle.
type State int

const (
	StateConnecting State = iota
	StateNamed
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateNamed:
		return "NAMED"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Session is the server side of one connected client, from accept to
// disconnect. It owns its Conn exclusively; other sessions only reach it
// through Send.
type Session struct {
	id   uuid.UUID
	conn Conn
	hub  *Hub
	log  *slog.Logger

	mu    sync.RWMutex
	name  string
	state State
}

// NewSession wraps conn in a session bound to hub. The session is not
// registered until its handshake completes in Run.
func NewSession(conn Conn, hub *Hub, log *slog.Logger) *Session {
	return &Session{
		id:    uuid.New(),
		conn:  conn,
		hub:   hub,
		log:   log,
		name:  protocol.DefaultName,
		state: StateConnecting,
	}
}

// ID returns the identity used by the Hub, independent of the display name.
func (s *Session) ID() uuid.UUID { return s.id }

// RemoteAddr returns the peer address of the underlying connection.
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr() }

// Name returns the display name. It is DefaultName until the handshake ends.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Send writes one line to this session's client.
func (s *Session) Send(ctx context.Context, line string) error {
	return s.conn.WriteLine(ctx, line)
}

// Close force-closes the transport. The read loop in Run then observes the
// failure and performs the regular teardown.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Run drives the session through its whole lifecycle and returns once the
// session is CLOSED. Protocol events are handled strictly one after another.
func (s *Session) Run(ctx context.Context) {
	joined := false
	defer func() { s.teardown(ctx, joined) }()

	if err := s.conn.WriteLine(ctx, protocol.NamePrompt); err != nil {
		s.logReadError("Failed to send name prompt", err)
		return
	}

	raw, err := s.conn.ReadLine(ctx)
	if err != nil {
		s.logReadError("Connection lost before naming", err)
		return
	}

	name := protocol.ResolveName(raw)
	s.mu.Lock()
	s.name = name
	s.state = StateNamed
	s.mu.Unlock()

	// Register moves the session to ACTIVE under the hub lock.
	s.hub.Register(s)
	joined = true
	s.log.Info("Client joined", "name", name, "remote", s.RemoteAddr(), "id", s.id.String())

	s.hub.Broadcast(ctx, protocol.Join(name), s)
	if err := s.Send(ctx, protocol.Welcome(name).Line()); err != nil {
		s.log.Debug("Failed to send welcome", "name", name, "error", err)
	}

	for {
		line, err := s.conn.ReadLine(ctx)
		if err != nil {
			s.logReadError("Read loop ended", err)
			return
		}
		if protocol.IsQuit(line) {
			s.log.Debug("Client quit", "name", name)
			return
		}

		msg := protocol.Text(name, line)
		s.log.Info("Message", "name", name, "content", line)

		s.hub.Broadcast(ctx, msg, s)
		if err := s.Send(ctx, msg.Line()); err != nil {
			s.log.Debug("Failed to echo message", "name", name, "error", err)
		}
	}
}

func (s *Session) teardown(ctx context.Context, joined bool) {
	s.setState(StateClosing)

	if err := s.conn.Close(); err != nil && !errors.Is(err, ErrConnClosed) {
		s.log.Debug("Failed to close connection", "remote", s.RemoteAddr(), "error", err)
	}

	// Never announced, so nothing to take back.
	if !joined {
		s.log.Debug("Connection closed before joining", "remote", s.RemoteAddr())
		s.setState(StateClosed)
		return
	}

	name := s.Name()
	s.hub.Unregister(s)
	s.hub.Broadcast(ctx, protocol.Leave(name), s)
	s.log.Info("Client disconnected", "name", name, "remote", s.RemoteAddr())

	s.setState(StateClosed)
}

func (s *Session) logReadError(msg string, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, ErrConnClosed) || errors.Is(err, net.ErrClosed) {
		s.log.Debug(msg, "name", s.Name(), "remote", s.RemoteAddr(), "error", err)
		return
	}
	s.log.Warn(msg, "name", s.Name(), "remote", s.RemoteAddr(), "error", err)
}
