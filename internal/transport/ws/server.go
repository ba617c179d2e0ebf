package ws

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gobwas/ws"
	"github.com/omochice/line-chat/internal/chat"
	"github.com/omochice/line-chat/internal/transport/tcp"
)

// Upgrade returns a connection factory performing the server side WebSocket
// handshake on each accepted socket.
func Upgrade(writeTimeout time.Duration) tcp.ConnFactory {
	return func(conn net.Conn) (chat.Conn, error) {
		if _, err := ws.Upgrade(conn); err != nil {
			return nil, fmt.Errorf("websocket upgrade: %w", err)
		}
		return NewConnWithTimeout(conn, writeTimeout), nil
	}
}

// New creates a WebSocket server that uses the provided Hub. It shares the
// TCP accept loop and only swaps the framing.
func New(address string, hub *chat.Hub, log *slog.Logger, writeTimeout time.Duration) *tcp.Server {
	return tcp.New(address, hub, log,
		tcp.WithName("websocket"),
		tcp.WithConnFactory(Upgrade(writeTimeout)),
	)
}
