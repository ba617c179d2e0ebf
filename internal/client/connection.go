package client

import (
	"context"
	"fmt"
	"net"

	"github.com/gorilla/websocket"
	"github.com/omochice/line-chat/internal/chat"
	"github.com/omochice/line-chat/internal/transport/tcp"
)

// Dial connects over WebSocket when a URL is configured, otherwise over TCP.
func Dial(ctx context.Context, cfg Config) (chat.Conn, error) {
	if cfg.WebSocketURL != "" {
		return DialWebSocket(ctx, cfg.WebSocketURL)
	}
	return DialTCP(ctx, cfg.Address())
}

// DialTCP opens a newline framed connection to address.
func DialTCP(ctx context.Context, address string) (chat.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return tcp.NewConn(conn).WithMaxLineSize(maxIncomingLine), nil
}

// DialWebSocket opens a WebSocket connection to url, one text frame per line.
func DialWebSocket(ctx context.Context, url string) (chat.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	conn.SetReadLimit(maxIncomingLine)
	return NewWebSocketConn(conn), nil
}
