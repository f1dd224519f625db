// Package hub is the room coordinator. A single goroutine owns every room,
// session and typing lock; transports, lock timers and execution calls all
// talk to it by sending messages on its inbox, so each event is handled to
// completion before the next one starts.
package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/codeshare-backend/internal/executor"
	"github.com/DoyleJ11/codeshare-backend/internal/protocol"
	"github.com/DoyleJ11/codeshare-backend/internal/room"
)

type Msg interface{ isHubMsg() }

// Connect registers a new connection. The hub writes the session's events to
// Outbox and closes it when the session ends or falls too far behind.
type Connect struct {
	SessionID string
	Outbox    chan<- protocol.Outbound
}

// Disconnect is raised by the transport when the connection is gone.
type Disconnect struct {
	SessionID string
}

type FromClient struct {
	SessionID string
	Event     protocol.Inbound
}

// Reject reports a frame the transport could not decode.
type Reject struct {
	SessionID string
	Message   string
}

type Stats struct {
	Rooms    int `json:"active_rooms"`
	Sessions int `json:"active_sessions"`
}

type GetStats struct {
	Reply chan Stats
}

// RoomView is a copy of a room's state, safe to read outside the hub.
type RoomView struct {
	ID          string
	Document    string
	Output      string
	Members     []string
	LockedBy    *string
	Connections int
}

// GetRoom replies with nil when the room does not exist.
type GetRoom struct {
	RoomID string
	Reply  chan *RoomView
}

type Shutdown struct{}

type lockExpired struct {
	room  *room.Room
	token uint64
}

type executionDone struct {
	room   *room.Room
	result executor.Result
	err    error
}

func (Connect) isHubMsg()       {}
func (Disconnect) isHubMsg()    {}
func (FromClient) isHubMsg()    {}
func (Reject) isHubMsg()        {}
func (GetStats) isHubMsg()      {}
func (GetRoom) isHubMsg()       {}
func (Shutdown) isHubMsg()      {}
func (lockExpired) isHubMsg()   {}
func (executionDone) isHubMsg() {}

// Executor runs code for the compileCode event.
type Executor interface {
	Execute(ctx context.Context, req executor.Request) (executor.Result, error)
}

type Option func(*Hub)

func WithLockTimeout(d time.Duration) Option {
	return func(h *Hub) { h.lockTimeout = d }
}

func WithScheduler(s room.Scheduler) Option {
	return func(h *Hub) { h.schedule = s }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

type Hub struct {
	inbox    chan Msg
	rooms    *room.Registry
	sessions map[string]*Session
	// groups holds the connected sessions of each room, keyed by session id.
	groups map[string]map[string]*Session

	exec        Executor
	log         *zap.Logger
	now         func() time.Time
	lockTimeout time.Duration
	schedule    room.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(parent context.Context, log *zap.Logger, exec Executor, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:       make(chan Msg, 256),
		sessions:    make(map[string]*Session),
		groups:      make(map[string]map[string]*Session),
		exec:        exec,
		log:         log,
		now:         time.Now,
		lockTimeout: room.DefaultLockTimeout,
		schedule:    room.AfterFunc,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.rooms = room.NewRegistry(room.Options{
		LockTimeout: h.lockTimeout,
		Schedule:    h.schedule,
		OnExpire: func(r *room.Room, token uint64) {
			h.enqueue(lockExpired{room: r, token: token})
		},
	})

	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

// Send delivers m unless ctx ends or the hub has stopped first.
func (h *Hub) Send(ctx context.Context, m Msg) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbox <- m:
		return true
	case <-ctx.Done():
		return false
	case <-h.ctx.Done():
		return false
	}
}

// Done is closed once the event loop has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Stopping is closed before the hub closes outboxes on shutdown, so a
// transport seeing a closed outbox can tell shutdown from a dropped session.
func (h *Hub) Stopping() <-chan struct{} { return h.ctx.Done() }

// enqueue is used by timer and execution goroutines.
func (h *Hub) enqueue(m Msg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Connect:
				h.connect(msg)

			case Disconnect:
				h.disconnect(msg.SessionID)

			case FromClient:
				if s, ok := h.sessions[msg.SessionID]; ok {
					h.dispatch(s, msg.Event)
				}

			case Reject:
				if s, ok := h.sessions[msg.SessionID]; ok {
					h.send(s, protocol.Error{Message: msg.Message})
				}

			case lockExpired:
				h.expireLock(msg)

			case executionDone:
				h.finishExecution(msg)

			case GetStats:
				msg.Reply <- Stats{Rooms: h.rooms.Len(), Sessions: len(h.sessions)}

			case GetRoom:
				msg.Reply <- h.view(msg.RoomID)

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) connect(msg Connect) {
	if _, dup := h.sessions[msg.SessionID]; dup {
		h.log.Warn("duplicate session id", zap.String("session", msg.SessionID))
		close(msg.Outbox)
		return
	}
	h.sessions[msg.SessionID] = newSession(msg.SessionID, msg.Outbox)
	h.log.Debug("session connected", zap.String("session", msg.SessionID))
}

func (h *Hub) disconnect(id string) {
	s, ok := h.sessions[id]
	if !ok {
		return
	}
	delete(h.sessions, id)
	if s.room != "" {
		h.ungroup(s)
	}
	if h.bound(s) {
		h.leave(s, leaveDisconnect)
	}
	h.closeSession(s)
	h.log.Debug("session disconnected", zap.String("session", id))
}

func (h *Hub) view(id string) *RoomView {
	r, ok := h.rooms.Get(id)
	if !ok {
		return nil
	}
	return &RoomView{
		ID:          r.ID,
		Document:    r.Document,
		Output:      r.Output,
		Members:     r.Members(),
		LockedBy:    r.LockedBy(),
		Connections: len(h.groups[id]),
	}
}

func (h *Hub) shutdown() {
	h.cancel()
	for id, s := range h.sessions {
		h.closeSession(s)
		delete(h.sessions, id)
	}
	clear(h.groups)
	h.rooms.Close()
	h.log.Info("hub stopped")
}
