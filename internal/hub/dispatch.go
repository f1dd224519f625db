package hub

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/codeshare-backend/internal/protocol"
	"github.com/DoyleJ11/codeshare-backend/internal/room"
)

const (
	msgInvalidRoomUser = "Invalid room or user"
	msgLockReleased    = "Typing lock released due to inactivity"
	chatTimeLayout     = "3:04:05 PM"
)

type leaveKind int

const (
	leaveExplicit leaveKind = iota
	leaveDisconnect
)

func (h *Hub) dispatch(s *Session, ev protocol.Inbound) {
	if err := protocol.Validate(ev); err != nil {
		h.send(s, protocol.Error{Message: err.Error()})
		return
	}

	switch e := ev.(type) {
	case protocol.Join:
		h.join(s, e)

	case protocol.LeaveRoom:
		if _, ok := h.requireRoom(s); ok {
			h.leave(s, leaveExplicit)
		}

	case protocol.LockTyping:
		h.lockTyping(s, *e.IsLocked)

	case protocol.CodeChange:
		h.codeChange(s, e.Code)

	case protocol.Typing:
		if _, ok := h.requireRoom(s); ok {
			h.toOthers(s.room, s, protocol.UserTyping{UserName: s.user})
		}

	case protocol.LanguageChange:
		if _, ok := h.requireRoom(s); ok {
			h.toRoom(s.room, protocol.LanguageUpdate{Language: e.Language})
			h.toRoom(s.room, protocol.Info(fmt.Sprintf("Language changed to %s", e.Language)))
		}

	case protocol.CompileCode:
		h.compile(s, e)

	case protocol.ChatMessage:
		h.toRoom(e.RoomID, protocol.ChatBroadcast{
			UserName: e.UserName,
			Message:  e.Message,
			Time:     h.now().Format(chatTimeLayout),
		})

	case protocol.ClearChat:
		h.toRoom(e.RoomID, protocol.ChatCleared{})

	default:
		h.send(s, protocol.Error{Message: fmt.Sprintf("unsupported event %q", ev.Event())})
	}
}

// bound reports whether s is joined to a room that still exists and still
// lists its user.
func (h *Hub) bound(s *Session) bool {
	if s.room == "" || s.user == "" {
		return false
	}
	r, ok := h.rooms.Get(s.room)
	return ok && r.HasMember(s.user)
}

// nameShared reports whether another session in s's room uses s's user name.
func (h *Hub) nameShared(s *Session) bool {
	for id, other := range h.groups[s.room] {
		if id != s.ID && other.user == s.user {
			return true
		}
	}
	return false
}

// requireRoom returns the session's room, or tells the session it has none.
func (h *Hub) requireRoom(s *Session) (*room.Room, bool) {
	if !h.bound(s) {
		h.send(s, protocol.Error{Message: msgInvalidRoomUser})
		return nil, false
	}
	r, _ := h.rooms.Get(s.room)
	return r, true
}

func (h *Hub) join(s *Session, e protocol.Join) {
	if h.bound(s) {
		if s.room != e.RoomID {
			h.leave(s, leaveExplicit)
		} else if s.user != e.UserName {
			h.rename(s, e.UserName)
		}
	}

	r, created := h.rooms.GetOrCreate(e.RoomID)
	if created {
		h.log.Info("room created", zap.String("room", r.ID))
	}

	s.bind(e.RoomID, e.UserName)
	h.group(s)
	r.Join(e.UserName)

	h.send(s, protocol.InitState{
		Code:     r.Document,
		Users:    r.Members(),
		LockedBy: r.LockedBy(),
		Output:   r.Output,
	})
	h.toRoom(r.ID, protocol.UserJoined{Users: r.Members()})
	h.toRoom(r.ID, protocol.Success(fmt.Sprintf("%s joined the room!", e.UserName)))

	h.log.Info("user joined",
		zap.String("room", r.ID),
		zap.String("user", e.UserName),
		zap.String("session", s.ID),
	)
}

// rename handles a re-join of the same room under another name. The old name
// leaves the member set unless another session still uses it, and the room
// is never torn down in between.
func (h *Hub) rename(s *Session, user string) {
	r, _ := h.rooms.Get(s.room)
	if !h.nameShared(s) && r.Leave(s.user) {
		h.toRoom(r.ID, protocol.Unlocked())
	}
	s.user = user
}

// leave removes the session's user from its room. For leaveExplicit the
// session still receives the resulting broadcasts and is then unbound; for
// leaveDisconnect it has already left the channel group.
//
// When another session in the room uses the same name, the name stays a
// member (and keeps the lock if it holds it); only s is detached.
func (h *Hub) leave(s *Session, kind leaveKind) {
	r, _ := h.rooms.Get(s.room)
	user := s.user

	if h.nameShared(s) {
		h.ungroup(s)
		s.unbind()
		h.log.Info("session left, name still in use",
			zap.String("room", r.ID),
			zap.String("user", user),
			zap.String("session", s.ID),
		)
		return
	}

	if r.Leave(user) {
		h.toRoom(r.ID, protocol.Unlocked())
	}
	h.toRoom(r.ID, protocol.UserJoined{Users: r.Members()})
	if kind == leaveDisconnect {
		h.toRoom(r.ID, protocol.Warning(fmt.Sprintf("%s disconnected!", user)))
	} else {
		h.toRoom(r.ID, protocol.Info(fmt.Sprintf("%s left the room!", user)))
	}

	h.ungroup(s)
	s.unbind()

	if r.Empty() {
		h.destroy(r)
	}

	h.log.Info("user left",
		zap.String("room", r.ID),
		zap.String("user", user),
		zap.Bool("disconnected", kind == leaveDisconnect),
	)
}

// destroy drops an empty room. Sessions still grouped under it (another
// session using the same display name) lose their binding.
func (h *Hub) destroy(r *room.Room) {
	if err := h.rooms.Remove(r.ID); err != nil {
		h.log.DPanic("remove room", zap.String("room", r.ID), zap.Error(err))
		return
	}
	for _, s := range h.groups[r.ID] {
		s.unbind()
	}
	delete(h.groups, r.ID)
	h.log.Info("room closed", zap.String("room", r.ID))
}

func (h *Hub) lockTyping(s *Session, lock bool) {
	r, ok := h.requireRoom(s)
	if !ok {
		return
	}

	if lock {
		if !r.Lock().Acquire(s.user) {
			holder, _ := r.Lock().Holder()
			h.send(s, protocol.Warning(fmt.Sprintf("%s already has typing control", holder)))
			return
		}
		h.toRoom(r.ID, protocol.LockedBy(s.user))
		return
	}

	if r.Lock().Release(s.user) {
		h.toRoom(r.ID, protocol.Unlocked())
	}
}

func (h *Hub) codeChange(s *Session, code string) {
	r, ok := h.requireRoom(s)
	if !ok {
		return
	}

	switch r.Edit(s.user, code) {
	case room.EditRejected:
		holder, _ := r.Lock().Holder()
		h.send(s, protocol.Warning(fmt.Sprintf("You can't edit while %s is typing", holder)))
	case room.EditDropped:
	case room.EditAcquired:
		h.toRoom(r.ID, protocol.LockedBy(s.user))
		h.toOthers(r.ID, s, protocol.CodeUpdate{Code: code})
	case room.EditApplied:
		h.toOthers(r.ID, s, protocol.CodeUpdate{Code: code})
	}
}

func (h *Hub) expireLock(msg lockExpired) {
	if !h.rooms.Current(msg.room) {
		h.log.Debug("lock timer for a closed room", zap.String("room", msg.room.ID))
		return
	}
	holder, ok := msg.room.Lock().Expire(msg.token)
	if !ok {
		h.log.Debug("stale lock timer", zap.String("room", msg.room.ID))
		return
	}

	h.toRoom(msg.room.ID, protocol.Unlocked())
	h.toRoom(msg.room.ID, protocol.Info(msgLockReleased))
	h.log.Info("typing lock expired", zap.String("room", msg.room.ID), zap.String("user", holder))
}
