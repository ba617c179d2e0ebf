package chat_test

import (
	"context"
	"io"
	"sync"

	"github.com/omochice/line-chat/internal/chat"
)

// mockConn is an in-memory implementation of chat.Conn for testing.
// Lines pushed with send are returned by ReadLine; closing the peer side
// with hangup makes ReadLine return io.EOF.
type mockConn struct {
	readCh     chan string
	done       chan struct{}
	closeOnce  sync.Once
	hangOnce   sync.Once
	writtenMu  sync.Mutex
	written    []string
	writeErr   error
	remoteAddr string
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan string, 10),
		done:       make(chan struct{}),
		remoteAddr: addr,
	}
}

func (m *mockConn) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-m.done:
		return "", chat.ErrConnClosed
	case line, ok := <-m.readCh:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
}

func (m *mockConn) WriteLine(ctx context.Context, line string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	select {
	case <-m.done:
		return chat.ErrConnClosed
	default:
	}
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	m.written = append(m.written, line)
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

// send simulates the peer writing a line.
func (m *mockConn) send(line string) {
	m.readCh <- line
}

// hangup simulates the peer closing its side of the connection.
func (m *mockConn) hangup() {
	m.hangOnce.Do(func() { close(m.readCh) })
}

func (m *mockConn) isClosed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *mockConn) GetWritten() []string {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	out := make([]string, len(m.written))
	copy(out, m.written)
	return out
}

func (m *mockConn) count(line string) int {
	n := 0
	for _, w := range m.GetWritten() {
		if w == line {
			n++
		}
	}
	return n
}

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)
