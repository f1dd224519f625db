package hub

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/codeshare-backend/internal/protocol"
)

// send queues ev for s. A session whose outbox is full is dropped: its
// outbox is closed, which makes the transport hang up and report a
// Disconnect.
func (h *Hub) send(s *Session, ev protocol.Outbound) {
	if s.closed {
		return
	}
	select {
	case s.outbox <- ev:
	default:
		h.log.Warn("dropping slow session",
			zap.String("session", s.ID),
			zap.String("room", s.room),
			zap.String("event", ev.Event()),
		)
		h.closeSession(s)
	}
}

// toRoom sends ev to every session in the room, the originator included.
func (h *Hub) toRoom(roomID string, ev protocol.Outbound) {
	for _, s := range h.groups[roomID] {
		h.send(s, ev)
	}
}

// toOthers sends ev to every session in the room except origin.
func (h *Hub) toOthers(roomID string, origin *Session, ev protocol.Outbound) {
	for id, s := range h.groups[roomID] {
		if id != origin.ID {
			h.send(s, ev)
		}
	}
}

func (h *Hub) group(s *Session) {
	g, ok := h.groups[s.room]
	if !ok {
		g = make(map[string]*Session)
		h.groups[s.room] = g
	}
	g[s.ID] = s
}

func (h *Hub) ungroup(s *Session) {
	g, ok := h.groups[s.room]
	if !ok {
		return
	}
	delete(g, s.ID)
	if len(g) == 0 {
		delete(h.groups, s.room)
	}
}

func (h *Hub) closeSession(s *Session) {
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbox)
}
