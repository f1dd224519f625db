package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	d       time.Duration
	fire    func()
	stopped bool
}

// fakeScheduler records armed timers so tests decide when they fire.
type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) schedule(d time.Duration, fire func()) func() bool {
	t := &fakeTimer{d: d, fire: fire}
	s.timers = append(s.timers, t)
	return func() bool {
		pending := !t.stopped
		t.stopped = true
		return pending
	}
}

func (s *fakeScheduler) pending() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeScheduler) last() *fakeTimer {
	return s.timers[len(s.timers)-1]
}

func newTestLock(t *testing.T) (*Lock, *fakeScheduler, *[]uint64) {
	t.Helper()
	sched := &fakeScheduler{}
	fired := &[]uint64{}
	l := NewLock(10*time.Second, sched.schedule, func(token uint64) {
		*fired = append(*fired, token)
	})
	return l, sched, fired
}

func TestLock_AcquireWhenFree(t *testing.T) {
	l, sched, _ := newTestLock(t)

	require.True(t, l.Acquire("alice"))

	holder, ok := l.Holder()
	require.True(t, ok)
	assert.Equal(t, "alice", holder)
	require.Len(t, sched.pending(), 1)
	assert.Equal(t, 10*time.Second, sched.last().d)
}

func TestLock_AcquireIsIdempotentForHolder(t *testing.T) {
	l, sched, _ := newTestLock(t)

	require.True(t, l.Acquire("alice"))
	require.True(t, l.Acquire("alice"))

	assert.True(t, l.HeldBy("alice"))
	assert.Len(t, sched.timers, 2)
	assert.Len(t, sched.pending(), 1, "refresh must replace the timer, not stack it")
}

func TestLock_AcquireContended(t *testing.T) {
	l, sched, _ := newTestLock(t)
	require.True(t, l.Acquire("alice"))

	assert.False(t, l.Acquire("bob"))
	assert.True(t, l.HeldBy("alice"))
	assert.Len(t, sched.timers, 1)
}

func TestLock_ReleaseOnlyByHolder(t *testing.T) {
	l, sched, _ := newTestLock(t)
	require.True(t, l.Acquire("alice"))

	assert.False(t, l.Release("bob"))
	assert.True(t, l.HeldBy("alice"))

	assert.True(t, l.Release("alice"))
	_, held := l.Holder()
	assert.False(t, held)
	assert.Empty(t, sched.pending())
}

func TestLock_Edit(t *testing.T) {
	l, sched, _ := newTestLock(t)

	assert.Equal(t, EditAcquired, l.Edit("alice"))
	assert.Equal(t, EditApplied, l.Edit("alice"))
	assert.Len(t, sched.pending(), 1)

	assert.Equal(t, EditRejected, l.Edit("bob"))
	assert.Equal(t, EditDropped, l.Edit("bob"))
	assert.Equal(t, EditDropped, l.Edit("bob"))
	assert.Equal(t, EditRejected, l.Edit("carol"))

	// rejected edits do not keep the holder's lock alive
	assert.Len(t, sched.timers, 2)
}

func TestLock_NewTenureClearsWarnings(t *testing.T) {
	l, _, _ := newTestLock(t)

	require.Equal(t, EditAcquired, l.Edit("alice"))
	require.Equal(t, EditRejected, l.Edit("bob"))
	require.True(t, l.Release("alice"))

	require.Equal(t, EditAcquired, l.Edit("carol"))
	assert.Equal(t, EditRejected, l.Edit("bob"), "bob should be warned again in carol's tenure")
}

func TestLock_ExplicitAcquireClearsWarnings(t *testing.T) {
	l, _, _ := newTestLock(t)

	require.Equal(t, EditAcquired, l.Edit("alice"))
	require.Equal(t, EditRejected, l.Edit("bob"))
	require.True(t, l.Release("alice"))

	require.True(t, l.Acquire("alice"))
	assert.Equal(t, EditRejected, l.Edit("bob"))
}

func TestLock_TimerFireReleases(t *testing.T) {
	l, sched, fired := newTestLock(t)
	require.Equal(t, EditAcquired, l.Edit("alice"))

	sched.last().fire()
	require.Len(t, *fired, 1)

	holder, ok := l.Expire((*fired)[0])
	require.True(t, ok)
	assert.Equal(t, "alice", holder)
	_, held := l.Holder()
	assert.False(t, held)

	_, again := l.Expire((*fired)[0])
	assert.False(t, again, "a token expires at most once")
}

func TestLock_StaleTokenIgnored(t *testing.T) {
	cases := []struct {
		name  string
		after func(l *Lock)
	}{
		{name: "re-armed by an edit", after: func(l *Lock) { l.Edit("alice") }},
		{name: "re-armed by explicit acquire", after: func(l *Lock) { l.Acquire("alice") }},
		{name: "released", after: func(l *Lock) { l.Release("alice") }},
		{name: "closed", after: func(l *Lock) { l.Close() }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, sched, fired := newTestLock(t)
			require.Equal(t, EditAcquired, l.Edit("alice"))

			// the timer fires, but the owner changes state before handling it
			sched.timers[0].fire()
			tc.after(l)

			_, ok := l.Expire((*fired)[0])
			assert.False(t, ok)
		})
	}
}

func TestLock_ReleaseThenReacquireByOther(t *testing.T) {
	l, _, _ := newTestLock(t)
	require.Equal(t, EditAcquired, l.Edit("alice"))
	require.Equal(t, EditRejected, l.Edit("bob"))

	require.True(t, l.Release("alice"))
	assert.Equal(t, EditAcquired, l.Edit("bob"))
	assert.True(t, l.HeldBy("bob"))
}
