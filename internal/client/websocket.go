package client

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/omochice/line-chat/internal/chat"
)

const closeGracePeriod = 100 * time.Millisecond

// WebSocketConn adapts a gorilla connection to chat.Conn.
type WebSocketConn struct {
	conn *websocket.Conn

	wmu    sync.Mutex
	closed atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketConn wraps an established gorilla connection.
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{conn: conn}
}

// ReadLine implements chat.Conn. A close frame from the server reads as io.EOF.
func (c *WebSocketConn) ReadLine(ctx context.Context) (string, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return "", io.EOF
			}
			if c.closed.Load() {
				return "", chat.ErrConnClosed
			}
			return "", err
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

// WriteLine implements chat.Conn.
func (c *WebSocketConn) WriteLine(ctx context.Context, line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed.Load() {
		return chat.ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// Close implements chat.Conn. It says goodbye with a close frame when the
// socket is still writable.
func (c *WebSocketConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements chat.Conn.
func (c *WebSocketConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
