package hub

import "github.com/DoyleJ11/codeshare-backend/internal/protocol"

// Session is the per-connection state. room and user are set and cleared
// together; both are empty until the first successful join.
type Session struct {
	ID     string
	outbox chan<- protocol.Outbound
	room   string
	user   string
	closed bool
}

func newSession(id string, outbox chan<- protocol.Outbound) *Session {
	return &Session{ID: id, outbox: outbox}
}

func (s *Session) bind(roomID, user string) {
	s.room = roomID
	s.user = user
}

func (s *Session) unbind() {
	s.room = ""
	s.user = ""
}
