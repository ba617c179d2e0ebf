package tcp

import (
	"bufio"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/omochice/line-chat/internal/chat"
	"github.com/stretchr/testify/require"
)

func TestServer_Serve_FatalListenerError(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	hub := chat.NewHub(log)
	srv := New("127.0.0.1:0", hub, log)
	req.NoError(srv.Listen())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	client, err := net.Dial("tcp", srv.Addr())
	req.NoError(err)
	defer client.Close()
	reader := bufio.NewReader(client)
	_, err = reader.ReadString('\n')
	req.NoError(err)

	// When the listener breaks underneath the accept loop
	req.NoError(srv.listener.Close())

	// Then Serve reports the failure
	select {
	case err := <-errCh:
		req.Error(err)
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after listener failure")
	}

	// And already connected clients were shut down
	req.NoError(client.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = reader.ReadString('\n')
	req.Error(err)
	req.Zero(srv.ConnCount())
}
