package client_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/line-chat/internal/client"
	"github.com/omochice/line-chat/internal/transport/tcp"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

// pipePeer is the server end of an in-memory connection.
type pipePeer struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func newPipe(t *testing.T) (*tcp.Conn, *pipePeer) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() { _ = remote.Close() })
	return tcp.NewConn(local), &pipePeer{t: t, conn: remote, reader: bufio.NewReader(remote)}
}

func (p *pipePeer) expect(want string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	line, err := p.reader.ReadString('\n')
	require.NoError(p.t, err)
	require.Equal(p.t, want, strings.TrimRight(line, "\r\n"))
}

func (p *pipePeer) send(line string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetWriteDeadline(time.Now().Add(waitFor)))
	_, err := io.WriteString(p.conn, line+"\n")
	require.NoError(p.t, err)
}

func runClient(t *testing.T, ctx context.Context, c *client.Client) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("client did not stop")
	}
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func TestClient_RelaysBothWays(t *testing.T) {
	// Given a client whose input holds a message, a quit and a trailing line
	conn, server := newPipe(t)
	in := strings.NewReader("hello\n/quit\nnever sent\n")
	var out bytes.Buffer
	done := runClient(t, context.Background(), client.New(conn, in, &out, testLogger()))

	// When the input is forwarded
	server.expect("hello")
	server.expect("/quit")

	// Then nothing after the quit command is sent
	require.NoError(t, server.conn.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, err := server.reader.ReadString('\n')
	var netErr net.Error
	require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "unexpected read result: %v", err)

	// When the server answers and hangs up
	server.send("Bob: hello")
	server.send("[Server] Bob left the chat.")
	require.NoError(t, server.conn.Close())

	// Then every server line is printed verbatim, followed by the notice
	waitRun(t, done)
	require.Equal(t,
		"Bob: hello\n[Server] Bob left the chat.\n"+client.DisconnectNotice+"\n",
		out.String())
}

func TestClient_InputEOFClosesConnection(t *testing.T) {
	// Given a client with no input at all
	conn, server := newPipe(t)
	require.NoError(t, server.conn.SetReadDeadline(time.Now().Add(waitFor)))
	var out bytes.Buffer
	done := runClient(t, context.Background(), client.New(conn, strings.NewReader(""), &out, testLogger()))

	// Then the server observes end of stream
	_, err := server.reader.ReadString('\n')
	require.ErrorIs(t, err, io.EOF)

	// And the client stops after printing the notice
	waitRun(t, done)
	require.Equal(t, client.DisconnectNotice+"\n", out.String())
}

func TestClient_ContextCancelStops(t *testing.T) {
	// Given a client waiting on an input that never produces a line
	conn, server := newPipe(t)
	in, inWriter := io.Pipe()
	t.Cleanup(func() { _ = inWriter.Close() })

	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	done := runClient(t, ctx, client.New(conn, in, &out, testLogger()))

	server.send("[Server] Ann joined the chat.")
	require.NoError(t, server.conn.SetReadDeadline(time.Now().Add(waitFor)))

	// When the context is canceled
	cancel()

	// Then Run returns and the connection is closed
	waitRun(t, done)
	_, err := server.reader.ReadString('\n')
	require.ErrorIs(t, err, io.EOF)
	require.Contains(t, out.String(), client.DisconnectNotice)
}

func TestClient_ColorKeepsText(t *testing.T) {
	// Given a client with highlighting enabled
	conn, server := newPipe(t)
	in, inWriter := io.Pipe()
	t.Cleanup(func() { _ = inWriter.Close() })

	var out bytes.Buffer
	done := runClient(t, context.Background(), client.New(conn, in, &out, testLogger(), client.WithColor(true)))

	// When server lines arrive
	server.send("[Server] Ann joined the chat.")
	server.send("Ann: hi")
	require.NoError(t, server.conn.Close())

	// Then the text survives whatever styling the terminal supports
	waitRun(t, done)
	printed := out.String()
	require.Contains(t, printed, "[Server] Ann joined the chat.")
	require.Contains(t, printed, "Ann: hi\n")
	require.Contains(t, printed, client.DisconnectNotice)
}
