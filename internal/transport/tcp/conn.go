// Package tcp provides TCP transport implementation for the chat server.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omochice/line-chat/internal/chat"
)

// DefaultMaxLineSize bounds a single incoming line, terminator included.
const DefaultMaxLineSize = 64 * 1024

// Conn adapts net.Conn to chat.Conn interface with newline framing.
type Conn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration
	maxLineSize  int

	wmu    sync.Mutex
	closed atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		maxLineSize: DefaultMaxLineSize,
	}
}

// NewConnWithTimeout wraps a net.Conn and bounds every write by timeout.
// A zero timeout disables the deadline.
func NewConnWithTimeout(conn net.Conn, timeout time.Duration) *Conn {
	c := NewConn(conn)
	c.writeTimeout = timeout
	return c
}

// WithMaxLineSize changes the incoming line limit. Call it before the first read.
func (c *Conn) WithMaxLineSize(size int) *Conn {
	c.maxLineSize = size
	return c
}

// ReadLine implements chat.Conn.
// A final line without terminator is returned before io.EOF. A line longer
// than the limit fails with chat.ErrLineTooLong.
func (c *Conn) ReadLine(ctx context.Context) (string, error) {
	line, err := c.readLine()
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return trimEOL(line), nil
		}
		if errors.Is(err, chat.ErrLineTooLong) {
			return "", err
		}
		if c.closed.Load() {
			return "", chat.ErrConnClosed
		}
		return "", err
	}
	return trimEOL(line), nil
}

func (c *Conn) readLine() (string, error) {
	var buf []byte
	for {
		frag, err := c.reader.ReadSlice('\n')
		if len(buf)+len(frag) > c.maxLineSize {
			return "", chat.ErrLineTooLong
		}
		buf = append(buf, frag...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return string(buf), err
	}
}

// WriteLine implements chat.Conn.
// The line and its terminator go out in a single write.
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
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		if c.closed.Load() {
			return chat.ErrConnClosed
		}
		return err
	}
	return nil
}

// writeDeadline is the earlier of the configured timeout and the ctx
// deadline; zero clears any previous deadline.
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
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}
