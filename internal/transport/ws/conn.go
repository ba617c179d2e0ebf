// Package ws provides WebSocket transport implementation for the chat server.
// Each text frame carries exactly one chat line.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/omochice/line-chat/internal/chat"
	"github.com/omochice/line-chat/internal/transport/tcp"
)

const closeFrameTimeout = 100 * time.Millisecond

// Conn adapts an upgraded net.Conn to chat.Conn interface using gobwas/ws.
type Conn struct {
	conn         net.Conn
	reader       *wsutil.Reader
	control      wsutil.FrameHandlerFunc
	writeTimeout time.Duration
	maxLineSize  int

	wmu    sync.Mutex
	closed atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a net.Conn whose WebSocket handshake already completed.
func NewConn(conn net.Conn) *Conn {
	c := &Conn{conn: conn, maxLineSize: tcp.DefaultMaxLineSize}
	// Pong and close replies share the write lock with WriteLine.
	c.control = wsutil.ControlFrameHandler(lockedWriter{c}, ws.StateServerSide)
	c.reader = &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: c.control,
	}
	return c
}

// NewConnWithTimeout is NewConn with a bound on every write.
// A zero timeout disables the deadline.
func NewConnWithTimeout(conn net.Conn, timeout time.Duration) *Conn {
	c := NewConn(conn)
	c.writeTimeout = timeout
	return c
}

// WithMaxLineSize changes the incoming message limit. Call it before the first read.
func (c *Conn) WithMaxLineSize(size int) *Conn {
	c.maxLineSize = size
	return c
}

// ReadLine implements chat.Conn.
// Reads the next data message. A close frame from the peer yields io.EOF and
// a message longer than the limit fails with chat.ErrLineTooLong.
func (c *Conn) ReadLine(ctx context.Context) (string, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return "", c.readError(err)
		}

		if hdr.OpCode.IsControl() {
			if err := c.control(hdr, c.reader); err != nil {
				return "", c.readError(err)
			}
			continue
		}

		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := c.reader.Discard(); err != nil {
				return "", c.readError(err)
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(c.reader, int64(c.maxLineSize)+1))
		if err != nil {
			return "", c.readError(err)
		}
		if len(data) > c.maxLineSize {
			return "", chat.ErrLineTooLong
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}

// WriteLine implements chat.Conn.
// Writes the line as a single text frame; the frame is the terminator.
func (c *Conn) WriteLine(ctx context.Context, line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed.Load() {
		return chat.ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(c.writeDeadline(ctx)); err != nil {
		return err
	}
	if err := wsutil.WriteServerText(c.conn, []byte(line)); err != nil {
		if c.closed.Load() {
			return chat.ErrConnClosed
		}
		return err
	}
	return nil
}

func (c *Conn) writeDeadline(ctx context.Context) time.Time {
	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	return deadline
}

// Close implements chat.Conn.
// Sends a close frame when no write is in flight, then closes the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.wmu.TryLock() {
			_ = c.conn.SetWriteDeadline(time.Now().Add(closeFrameTimeout))
			body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
			_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, body)
			c.wmu.Unlock()
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) readError(err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	if c.closed.Load() {
		return chat.ErrConnClosed
	}
	return err
}

type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.wmu.Lock()
	defer w.c.wmu.Unlock()
	if err := w.c.conn.SetWriteDeadline(w.c.writeDeadline(context.Background())); err != nil {
		return 0, err
	}
	return w.c.conn.Write(p)
}
