package chat

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Hub is the registry of active sessions and handles broadcast.
// TCP and WebSocket listeners share a single Hub instance.
type Hub struct {
	log      *slog.Logger
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:      log,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Register adds a session to the hub and marks it ACTIVE, so no snapshot ever
// holds a session that has not finished its handshake. It returns false if
// the session was already registered.
func (h *Hub) Register(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.ID()]; ok {
		return false
	}
	s.setState(StateActive)
	h.sessions[s.ID()] = s
	return true
}

// Unregister removes a session from the hub. Removing an unknown session is a
// no-op and returns false.
func (h *Hub) Unregister(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.ID()]; !ok {
		return false
	}
	delete(h.sessions, s.ID())
	return true
}

// Snapshot returns the sessions registered at the time of the call. The slice
// is owned by the caller and is not affected by later registrations.
func (h *Hub) Snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Values(h.sessions)
}

// ClientCount returns number of active sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
