package core

import (
	"context"
	"encoding/json"
)

type Snapshot struct {
	URL     string `json:"url"`
	HTML    string `json:"html"`
	Visible bool   `json:"visible"`
}

// Target addresses the Index-th deep match of Selector.
type Target struct {
	Selector string `json:"selector"`
	Index    int    `json:"index"`
}

type EventKind string

const (
	PageMutation   EventKind = "mutation"
	PageVisibility EventKind = "visibility"
	PageUnload     EventKind = "unload"
	PageCustom     EventKind = "custom"
)

type PageEvent struct {
	Kind   EventKind       `json:"kind"`
	Name   string          `json:"name,omitempty"`
	Hidden bool            `json:"hidden,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Host is the chat page the engine is attached to.
type Host interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Activate(ctx context.Context, target Target) error
	InjectScript(ctx context.Context, id, source string) error
	RemoveScript(ctx context.Context, id string) error
	DispatchEvent(ctx context.Context, name string, detail any) error
	// Listen asks the page to forward custom events called name.
	Listen(ctx context.Context, name string) error
	Subscribe(handler func(PageEvent)) (unsubscribe func())
}
