package server_test

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/line-chat/internal/server"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfg server.Config) *server.Server {
	t.Helper()
	srv := server.New(cfg, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, srv.Listen())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Stop()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Serve() did not return after Stop()")
		}
	})
	return srv
}

type tcpPeer struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialTCP(t *testing.T, addr string) *tcpPeer {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &tcpPeer{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (p *tcpPeer) send(line string) {
	p.t.Helper()
	_, err := fmt.Fprintf(p.conn, "%s\n", line)
	require.NoError(p.t, err)
}

func (p *tcpPeer) expect(want string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := p.reader.ReadString('\n')
	require.NoError(p.t, err)
	require.Equal(p.t, want, strings.TrimRight(line, "\r\n"))
}

func (p *tcpPeer) join(name string) {
	p.t.Helper()
	p.expect("Enter your name:")
	p.send(name)
}

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, addr string) *wsPeer {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsPeer{t: t, conn: conn}
}

func (p *wsPeer) send(line string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, []byte(line)))
}

func (p *wsPeer) expect(want string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := p.conn.ReadMessage()
	require.NoError(p.t, err)
	require.Equal(p.t, want, string(data))
}

func TestServer_TCPAndWebSocketShareOneChat(t *testing.T) {
	req := require.New(t)
	srv := startServer(t, server.Config{Host: "127.0.0.1", Port: 0, WebSocketAddr: "127.0.0.1:0"})
	req.NotEmpty(srv.WebSocketAddr())

	bob := dialTCP(t, srv.Addr())
	bob.join("Bob")
	bob.expect("Welcome, Bob. Type /quit to exit.")

	cara := dialWS(t, srv.WebSocketAddr())
	cara.expect("Enter your name:")
	cara.send("Cara")
	cara.expect("Welcome, Cara. Type /quit to exit.")
	bob.expect("[Server] Cara joined the chat.")

	bob.send("hello")
	bob.expect("Bob: hello")
	cara.expect("Bob: hello")

	cara.send("/quit")
	bob.expect("[Server] Cara left the chat.")
	req.Eventually(func() bool { return srv.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestServer_WebSocketDisabledByDefault(t *testing.T) {
	srv := startServer(t, server.Config{Host: "127.0.0.1"})
	require.Empty(t, srv.WebSocketAddr())
}

func TestServer_ConcurrentClientsAreCountedExactly(t *testing.T) {
	req := require.New(t)
	srv := startServer(t, server.Config{Host: "127.0.0.1"})
	const n = 20

	peers := make([]*tcpPeer, n)
	for i := range peers {
		peers[i] = dialTCP(t, srv.Addr())
		peers[i].expect("Enter your name:")
	}

	var wg sync.WaitGroup
	for i, p := range peers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fmt.Fprintf(p.conn, "user%d\n", i); err != nil {
				t.Errorf("send name: %v", err)
			}
		}()
	}
	wg.Wait()
	req.Eventually(func() bool { return srv.ClientCount() == n }, 2*time.Second, 5*time.Millisecond)

	// Half quit politely, half vanish
	for i, p := range peers {
		if i%2 == 0 {
			p.send("/quit")
		} else {
			p.conn.Close()
		}
	}
	req.Eventually(func() bool { return srv.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_StopDisconnectsEveryone(t *testing.T) {
	req := require.New(t)
	srv := server.New(server.Config{Host: "127.0.0.1", WebSocketAddr: "127.0.0.1:0"}, slog.Default())
	req.NoError(srv.Listen())
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	bob := dialTCP(t, srv.Addr())
	bob.join("Bob")
	bob.expect("Welcome, Bob. Type /quit to exit.")

	cara := dialWS(t, srv.WebSocketAddr())
	cara.expect("Enter your name:")

	srv.Stop()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return")
	}
	req.Zero(srv.ClientCount())

	req.NoError(bob.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := bob.reader.ReadString('\n')
	req.Error(err)

	req.NoError(cara.conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = cara.conn.ReadMessage()
	req.Error(err)
}

func TestServer_Listen_ReleasesOnPartialFailure(t *testing.T) {
	req := require.New(t)
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	defer busy.Close()

	srv := server.New(server.Config{Host: "127.0.0.1", WebSocketAddr: busy.Addr().String()}, slog.Default())
	req.Error(srv.Listen())

	// The TCP listener bound first must have been released
	addr := srv.Addr()
	if addr != "" {
		_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		req.Error(err)
	}
}
