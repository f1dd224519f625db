package room

import (
	"errors"
	"fmt"
	"time"
)

var ErrRoomNotEmpty = errors.New("room still has members")

// Options configures the rooms a Registry creates.
type Options struct {
	LockTimeout time.Duration
	Schedule    Scheduler
	// OnExpire is called from the timer goroutine when a room's typing lock
	// times out. It must only hand the token back to the owning goroutine.
	OnExpire func(r *Room, token uint64)
}

// Registry maps room ids to rooms. Rooms are created lazily and removed as
// soon as they are empty. Like Room, it belongs to a single goroutine.
type Registry struct {
	rooms map[string]*Room
	opts  Options
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		opts:  opts,
	}
}

// GetOrCreate returns the room for id, creating it if needed. created reports
// whether a new room was made.
func (g *Registry) GetOrCreate(id string) (r *Room, created bool) {
	if r, ok := g.rooms[id]; ok {
		return r, false
	}

	r = newRoom(id, nil)
	r.lock = NewLock(g.opts.LockTimeout, g.opts.Schedule, func(token uint64) {
		if g.opts.OnExpire != nil {
			g.opts.OnExpire(r, token)
		}
	})
	g.rooms[id] = r
	return r, true
}

func (g *Registry) Get(id string) (*Room, bool) {
	r, ok := g.rooms[id]
	return r, ok
}

// Current reports whether r is still the live room for its id. A room that
// was removed and recreated under the same id is not current.
func (g *Registry) Current(r *Room) bool {
	live, ok := g.rooms[r.ID]
	return ok && live == r
}

// Remove drops an empty room and disarms its lock timer.
func (g *Registry) Remove(id string) error {
	r, ok := g.rooms[id]
	if !ok {
		return nil
	}
	if !r.Empty() {
		return fmt.Errorf("remove %q: %w", id, ErrRoomNotEmpty)
	}
	r.lock.Close()
	delete(g.rooms, id)
	return nil
}

func (g *Registry) Len() int {
	return len(g.rooms)
}

// Close disarms every lock timer and forgets all rooms.
func (g *Registry) Close() {
	for _, r := range g.rooms {
		r.lock.Close()
	}
	clear(g.rooms)
}
