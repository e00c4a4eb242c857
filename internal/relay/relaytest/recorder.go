// Package relaytest provides an in-memory core.Relay for tests.
package relaytest

import (
	"context"
	"sync"

	"github.com/sandevgo/verve/internal/core"
)

type Event struct {
	Kind    core.EventType
	Payload any
}

type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, kind core.EventType, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Kind: kind, Payload: payload})
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Of(kind core.EventType) []any {
	var out []any
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (r *Recorder) Count(kind core.EventType) int {
	return len(r.Of(kind))
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
