// Package page holds what the page backends share.
package page

import (
	"sync"

	"github.com/sandevgo/verve/internal/core"
)

const defaultQueueSize = 256

// Broadcaster fans page events out to subscribers from its own goroutine so
// the backend emitting them never waits on a handler.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]func(core.PageEvent)
	next   int
	queue  chan core.PageEvent
	done   chan struct{}
	closed bool
}

func NewBroadcaster(size int) *Broadcaster {
	if size <= 0 {
		size = defaultQueueSize
	}
	b := &Broadcaster{
		subs:  make(map[int]func(core.PageEvent)),
		queue: make(chan core.PageEvent, size),
		done:  make(chan struct{}),
	}
	go b.pump()
	return b
}

func (b *Broadcaster) Subscribe(handler func(core.PageEvent)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Emit queues ev. It reports false when the queue is full or closed and the
// event was dropped.
func (b *Broadcaster) Emit(ev core.PageEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.queue <- ev:
		return true
	default:
		return false
	}
}

func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

func (b *Broadcaster) pump() {
	for {
		select {
		case <-b.done:
			return
		case ev := <-b.queue:
			b.mu.Lock()
			handlers := make([]func(core.PageEvent), 0, len(b.subs))
			for _, h := range b.subs {
				handlers = append(handlers, h)
			}
			b.mu.Unlock()

			for _, h := range handlers {
				h(ev)
			}
		}
	}
}
