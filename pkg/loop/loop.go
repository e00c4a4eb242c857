// Package loop serializes work into turns. At most one turn runs at a time;
// timers scheduled through the loop run their callback as a turn of their own.
package loop

import (
	"sync"
	"time"

	"github.com/sandevgo/verve/pkg/clock"
)

type Loop struct {
	mu    sync.Mutex
	clock clock.Clock
}

func New(c clock.Clock) *Loop {
	if c == nil {
		c = clock.Real()
	}
	return &Loop{clock: c}
}

// Do runs fn as one turn. It must not be called from inside another turn.
func (l *Loop) Do(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// After schedules fn to run as its own turn once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) clock.Timer {
	return l.clock.AfterFunc(d, func() {
		l.Do(fn)
	})
}

func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

func (l *Loop) Clock() clock.Clock {
	return l.clock
}

// Timers tracks a set of pending timers so they can be cleared together.
type Timers struct {
	pending map[clock.Timer]struct{}
}

func (t *Timers) Add(timer clock.Timer) clock.Timer {
	if t.pending == nil {
		t.pending = make(map[clock.Timer]struct{})
	}
	t.pending[timer] = struct{}{}
	return timer
}

func (t *Timers) Done(timer clock.Timer) {
	delete(t.pending, timer)
}

func (t *Timers) StopAll() {
	for timer := range t.pending {
		timer.Stop()
	}
	t.pending = nil
}

func (t *Timers) Len() int {
	return len(t.pending)
}
