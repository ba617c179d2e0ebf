//go:generate go run go.uber.org/mock/mockgen -source=conn.go -destination=../../mocks/mock_conn.go -package=mocks

// Package chat provides the core chat domain logic shared by all transports.
package chat

import (
	"context"
	"errors"
)

var (
	// ErrConnClosed is returned by Conn implementations once Close has been called.
	ErrConnClosed = errors.New("connection closed")

	// ErrLineTooLong is returned by ReadLine when the peer exceeds the line
	// size limit. The connection is unusable afterwards.
	ErrLineTooLong = errors.New("line too long")
)

// Conn abstracts a bidirectional line connection for both TCP and WebSocket.
// This interface isolates transport details from chat logic.
type Conn interface {
	// ReadLine blocks until a full line is available and returns it without
	// its terminator. Returns io.EOF when the peer closed the connection.
	// A blocked read is not interrupted by ctx; Close unblocks it.
	ReadLine(ctx context.Context) (string, error)

	// WriteLine sends a single line. Concurrent calls never interleave.
	// A canceled ctx fails the write before it starts and a ctx deadline
	// bounds it.
	WriteLine(ctx context.Context, line string) error

	// Close closes the connection. Safe to call more than once.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
