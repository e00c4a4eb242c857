package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	m := NewManual(start)

	var fired []string
	m.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	m.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	m.AfterFunc(time.Second, func() { fired = append(fired, "b") })
	assert.Equal(t, 3, m.Pending())

	m.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(2*time.Second), m.Now())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired, "deadline equal to the target fires")
	assert.Zero(t, m.Pending())
}

func TestManual_NowDuringCallback(t *testing.T) {
	m := NewManual(start)

	var at time.Time
	m.AfterFunc(time.Second, func() { at = m.Now() })
	m.Advance(5 * time.Second)

	assert.Equal(t, start.Add(time.Second), at)
	assert.Equal(t, start.Add(5*time.Second), m.Now())
}

func TestManual_ChainedTimers(t *testing.T) {
	m := NewManual(start)

	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		m.AfterFunc(time.Second, tick)
	}
	m.AfterFunc(time.Second, tick)

	m.Advance(3 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, m.Pending())
}

func TestManual_Stop(t *testing.T) {
	m := NewManual(start)

	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	m.Advance(time.Minute)
	assert.False(t, fired)
	assert.Zero(t, m.Pending())

	done := m.AfterFunc(time.Second, func() {})
	m.Advance(time.Second)
	assert.False(t, done.Stop(), "a fired timer cannot be stopped")
}
