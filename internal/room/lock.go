package room

import "time"

// DefaultLockTimeout is how long a typing lock survives without edits.
const DefaultLockTimeout = 10 * time.Second

// Scheduler arms a one-shot timer that calls fire after d. The returned stop
// func disarms it and reports whether the timer was still pending.
type Scheduler func(d time.Duration, fire func()) (stop func() bool)

// AfterFunc is the production Scheduler.
func AfterFunc(d time.Duration, fire func()) func() bool {
	return time.AfterFunc(d, fire).Stop
}

type EditOutcome int

const (
	// EditApplied: the editor already held the lock.
	EditApplied EditOutcome = iota
	// EditAcquired: the lock was free and now belongs to the editor.
	EditAcquired
	// EditRejected: someone else holds the lock and the editor gets a warning.
	EditRejected
	// EditDropped: rejected again in the same tenure, no warning.
	EditDropped
)

// Lock is the single-writer typing lock of one room.
//
// It is not safe for concurrent use. The timer callback never touches the
// lock directly: it reports its token through expire, and the owner calls
// Expire with that token from its own goroutine.
type Lock struct {
	holder   string
	warned   map[string]struct{}
	timeout  time.Duration
	schedule Scheduler
	expire   func(token uint64)
	stop     func() bool
	token    uint64
}

func NewLock(timeout time.Duration, schedule Scheduler, expire func(token uint64)) *Lock {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if schedule == nil {
		schedule = AfterFunc
	}
	return &Lock{
		warned:   make(map[string]struct{}),
		timeout:  timeout,
		schedule: schedule,
		expire:   expire,
	}
}

// Holder returns the current lock holder, if any.
func (l *Lock) Holder() (string, bool) {
	return l.holder, l.holder != ""
}

func (l *Lock) HeldBy(user string) bool {
	return l.holder != "" && l.holder == user
}

// Acquire takes the lock for user, or refreshes it if user already holds it.
// It returns false when another user holds the lock.
func (l *Lock) Acquire(user string) bool {
	if l.holder != "" && l.holder != user {
		return false
	}
	if l.holder == "" {
		l.take(user)
	}
	l.arm()
	return true
}

// Release frees the lock if user holds it.
func (l *Lock) Release(user string) bool {
	if !l.HeldBy(user) {
		return false
	}
	l.disarm()
	l.holder = ""
	return true
}

// Edit decides whether an edit by user may be applied, taking the lock when
// it is free. Accepted edits restart the inactivity window.
func (l *Lock) Edit(user string) EditOutcome {
	if l.holder != "" && l.holder != user {
		if _, ok := l.warned[user]; ok {
			return EditDropped
		}
		l.warned[user] = struct{}{}
		return EditRejected
	}

	outcome := EditApplied
	if l.holder == "" {
		l.take(user)
		outcome = EditAcquired
	}
	l.arm()
	return outcome
}

// Expire releases the lock when token matches the most recently armed timer.
// Stale tokens (the timer was re-armed or disarmed after it fired) are ignored.
func (l *Lock) Expire(token uint64) (string, bool) {
	if l.holder == "" || token != l.token || l.stop == nil {
		return "", false
	}
	holder := l.holder
	l.holder = ""
	l.stop = nil
	return holder, true
}

// Close disarms the pending timer without touching the holder.
func (l *Lock) Close() {
	l.disarm()
}

func (l *Lock) take(user string) {
	l.holder = user
	clear(l.warned)
}

func (l *Lock) arm() {
	l.disarm()
	l.token++
	token := l.token
	l.stop = l.schedule(l.timeout, func() {
		if l.expire != nil {
			l.expire(token)
		}
	})
}

func (l *Lock) disarm() {
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	// A timer that already fired may still have its token in flight.
	l.token++
}
