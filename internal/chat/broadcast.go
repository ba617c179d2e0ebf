package chat

import (
	"context"

	"github.com/omochice/line-chat/pkg/protocol"
	"github.com/samber/lo"
)

// Broadcast delivers msg to every active session except exclude, which may be
// nil for server-authored messages to everyone.
//
// Recipients are taken from a snapshot so no lock is held while writing.
// A failed write only affects its recipient: the session behind it notices
// the broken transport on its own read loop.
func (h *Hub) Broadcast(ctx context.Context, msg protocol.Message, exclude *Session) {
	line := msg.Line()
	recipients := lo.Filter(h.Snapshot(), func(s *Session, _ int) bool {
		return s != exclude
	})

	for _, s := range recipients {
		if err := s.Send(ctx, line); err != nil {
			h.log.Debug("Broadcast skipped recipient",
				"name", s.Name(), "remote", s.RemoteAddr(), "type", msg.Type.String(), "error", err)
		}
	}
}
