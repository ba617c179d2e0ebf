// Package client bridges a terminal to the chat server.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gookit/color"
	"github.com/omochice/line-chat/internal/chat"
	"github.com/omochice/line-chat/internal/transport/tcp"
	"github.com/omochice/line-chat/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

const (
	// DisconnectNotice is printed once the server closes the stream.
	DisconnectNotice = "Disconnected from server."

	// Input lines the server would reject end the input instead.
	maxLineSize = tcp.DefaultMaxLineSize

	// Relayed lines carry a name prefix on top of the sender's line.
	maxIncomingLine = 4 * tcp.DefaultMaxLineSize
)

// ErrDisconnected ends the receive loop when the stream is over.
var ErrDisconnected = errors.New("disconnected from server")

// Option configures a Client.
type Option func(c *Client)

// WithColor highlights server announcements and local notices.
func WithColor(enabled bool) Option {
	return func(c *Client) { c.color = enabled }
}

// Client is a transparent relay between a terminal and one chat connection.
type Client struct {
	conn  chat.Conn
	in    io.Reader
	out   io.Writer
	log   *slog.Logger
	color bool
}

// New creates a Client relaying in to conn and conn to out.
func New(conn chat.Conn, in io.Reader, out io.Writer, log *slog.Logger, opts ...Option) *Client {
	c := &Client{conn: conn, in: in, out: out, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run relays until the server closes the stream or ctx is canceled.
// The output loop owns the lifetime: when it ends, the input loop is told
// to stop and the connection is closed.
func (c *Client) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.receive(gctx) })
	g.Go(func() error { return c.forward(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		if err := c.conn.Close(); err != nil {
			c.log.Debug("Failed to close connection", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, ErrDisconnected) {
		return err
	}
	return nil
}

// forward sends input lines verbatim and stops after /quit.
func (c *Client) forward(ctx context.Context) error {
	lines := scanLines(ctx, c.in, c.log)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				c.log.Debug("Input closed")
				_ = c.conn.Close()
				return nil
			}
			if err := c.conn.WriteLine(ctx, line); err != nil {
				// The receive loop reports the broken stream.
				c.log.Debug("Failed to send line", "error", err)
				return nil
			}
			if protocol.IsQuit(line) {
				return nil
			}
		}
	}
}

// receive prints server lines until end of stream.
func (c *Client) receive(ctx context.Context) error {
	for {
		line, err := c.conn.ReadLine(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, chat.ErrConnClosed) {
				c.log.Debug("Read failed", "error", err)
			}
			c.println(c.paint(color.Yellow, DisconnectNotice))
			return ErrDisconnected
		}

		if protocol.IsServerLine(line) {
			line = c.paint(color.Cyan, line)
		}
		c.println(line)
	}
}

func (c *Client) println(line string) {
	if _, err := fmt.Fprintln(c.out, line); err != nil {
		c.log.Debug("Failed to print line", "error", err)
	}
}

func (c *Client) paint(style color.Color, text string) string {
	if !c.color {
		return text
	}
	return style.Sprint(text)
}

// scanLines feeds lines from r into the returned channel, closed at EOF.
// A blocked terminal read cannot be interrupted, so the goroutine may outlive
// Run until the process exits.
func scanLines(ctx context.Context, r io.Reader, log *slog.Logger) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Debug("Error reading input", "error", err)
		}
	}()
	return lines
}
