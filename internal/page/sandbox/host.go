// Package sandbox is an offline page host over saved HTML documents.
// Contact activations swap in the conversation saved for that contact and
// helper scripts run inside an embedded JavaScript VM.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/dom"
	"github.com/sandevgo/verve/internal/page"
)

var ErrClosed = errors.New("sandbox page is closed")

// Interaction is one element operation performed by a helper script.
type Interaction struct {
	Op       string
	Selector string
	Value    string
}

type Option func(*Host)

// WithConversations sets the document shown after activating the i-th contact.
func WithConversations(pages ...string) Option {
	return func(h *Host) {
		h.conversations = pages
	}
}

// WithInjectError makes every InjectScript call fail with err.
func WithInjectError(err error) Option {
	return func(h *Host) {
		h.injectErr = err
	}
}

type Host struct {
	mu            sync.Mutex
	url           string
	html          string
	doc           *dom.Document
	visible       bool
	closed        bool
	conversations []string
	injectErr     error

	activations  []core.Target
	scripts      map[string]struct{}
	watched      map[string]struct{}
	interactions []Interaction
	draft        string
	sent         []string

	vm        *goja.Runtime
	listeners map[string][]listener

	events *page.Broadcaster
}

func New(url, html string, opts ...Option) (*Host, error) {
	h := &Host{
		url:       url,
		visible:   true,
		scripts:   make(map[string]struct{}),
		watched:   make(map[string]struct{}),
		listeners: make(map[string][]listener),
		events:    page.NewBroadcaster(0),
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.load(html); err != nil {
		h.events.Close()
		return nil, err
	}
	return h, nil
}

func (h *Host) load(html string) error {
	doc, err := dom.Parse(h.url, html)
	if err != nil {
		return fmt.Errorf("parse sandbox page: %w", err)
	}
	h.html = html
	h.doc = doc
	return nil
}

func (h *Host) Snapshot(context.Context) (core.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return core.Snapshot{}, ErrClosed
	}
	return core.Snapshot{URL: h.url, HTML: h.html, Visible: h.visible}, nil
}

func (h *Host) Activate(_ context.Context, target core.Target) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	matches := h.doc.FindAll(target.Selector)
	if target.Index < 0 || target.Index >= len(matches) {
		return fmt.Errorf("no element %d for %q", target.Index, target.Selector)
	}
	h.activations = append(h.activations, target)

	if target.Index < len(h.conversations) && h.conversations[target.Index] != "" {
		if err := h.load(h.conversations[target.Index]); err != nil {
			return err
		}
		h.events.Emit(core.PageEvent{Kind: core.PageMutation})
	}
	return nil
}

// SetHTML replaces the document and reports a mutation.
func (h *Host) SetHTML(html string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.load(html); err != nil {
		return err
	}
	h.events.Emit(core.PageEvent{Kind: core.PageMutation})
	return nil
}

func (h *Host) SetVisible(visible bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visible = visible
	h.events.Emit(core.PageEvent{Kind: core.PageVisibility, Hidden: !visible})
}

// Unload reports the page going away and closes the host.
func (h *Host) Unload() {
	h.mu.Lock()
	h.events.Emit(core.PageEvent{Kind: core.PageUnload})
	h.closed = true
	h.mu.Unlock()
}

func (h *Host) InjectScript(_ context.Context, id, source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if h.injectErr != nil {
		return h.injectErr
	}

	h.ensureVM()
	if _, err := h.vm.RunScript(id, source); err != nil {
		return fmt.Errorf("run script %q: %w", id, err)
	}
	h.scripts[id] = struct{}{}
	return nil
}

func (h *Host) RemoveScript(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.scripts, id)
	return nil
}

func (h *Host) DispatchEvent(_ context.Context, name string, detail any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("encode event detail: %w", err)
	}
	if h.vm == nil {
		h.forward(name, raw)
		return nil
	}
	return h.dispatch(name, raw)
}

func (h *Host) Listen(_ context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watched[name] = struct{}{}
	return nil
}

func (h *Host) Subscribe(handler func(core.PageEvent)) func() {
	return h.events.Subscribe(handler)
}

func (h *Host) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.events.Close()
	return nil
}

func (h *Host) Activations() []core.Target {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]core.Target(nil), h.activations...)
}

func (h *Host) Scripts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.scripts))
	for id := range h.scripts {
		out = append(out, id)
	}
	return out
}

// Sent lists the texts helper scripts submitted through the chat input.
func (h *Host) Sent() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sent...)
}

func (h *Host) Interactions() []Interaction {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Interaction(nil), h.interactions...)
}

// forward hands a custom event to subscribers when its name is watched.
func (h *Host) forward(name string, detail json.RawMessage) {
	if _, ok := h.watched[name]; !ok {
		return
	}
	h.events.Emit(core.PageEvent{Kind: core.PageCustom, Name: name, Detail: detail})
}
