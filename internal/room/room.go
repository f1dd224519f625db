package room

import (
	"slices"

	"github.com/samber/lo"
)

// DefaultDocument is the text every new room starts with.
const DefaultDocument = "// start code here"

// Room is the shared state behind one room id: the document, the last
// execution output, who is in the room and who may type.
//
// A Room is owned by a single goroutine; none of its methods lock.
type Room struct {
	ID       string
	Document string
	Output   string

	members []string
	lock    *Lock
}

func newRoom(id string, lock *Lock) *Room {
	return &Room{
		ID:       id,
		Document: DefaultDocument,
		lock:     lock,
	}
}

// Join adds user to the member set. Joining twice with the same name is a no-op.
func (r *Room) Join(user string) {
	if !lo.Contains(r.members, user) {
		r.members = append(r.members, user)
	}
}

// Leave removes user from the room, releasing the typing lock first if user
// held it. It reports whether the lock was released.
func (r *Room) Leave(user string) bool {
	released := r.lock.Release(user)
	r.members = lo.Without(r.members, user)
	return released
}

func (r *Room) HasMember(user string) bool {
	return lo.Contains(r.members, user)
}

// Members returns the member names in join order, never nil.
func (r *Room) Members() []string {
	if len(r.members) == 0 {
		return []string{}
	}
	return slices.Clone(r.members)
}

func (r *Room) Empty() bool {
	return len(r.members) == 0
}

func (r *Room) Lock() *Lock {
	return r.lock
}

// LockedBy returns the lock holder, or nil when the room is unlocked.
func (r *Room) LockedBy() *string {
	if holder, ok := r.lock.Holder(); ok {
		return &holder
	}
	return nil
}

// Edit applies code from user if the typing lock allows it.
func (r *Room) Edit(user, code string) EditOutcome {
	outcome := r.lock.Edit(user)
	if outcome == EditApplied || outcome == EditAcquired {
		r.Document = code
	}
	return outcome
}
