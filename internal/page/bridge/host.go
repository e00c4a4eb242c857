package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/verve/internal/core"
)

func (b *Bridge) Snapshot(ctx context.Context) (core.Snapshot, error) {
	raw, err := b.Call(ctx, "page.snapshot", nil)
	if err != nil {
		return core.Snapshot{}, err
	}
	var snap core.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (b *Bridge) Activate(ctx context.Context, target core.Target) error {
	_, err := b.Call(ctx, "page.activate", target)
	return err
}

func (b *Bridge) InjectScript(ctx context.Context, id, source string) error {
	_, err := b.Call(ctx, "page.inject", map[string]string{"id": id, "source": source})
	return err
}

func (b *Bridge) RemoveScript(ctx context.Context, id string) error {
	_, err := b.Call(ctx, "page.remove", map[string]string{"id": id})
	return err
}

func (b *Bridge) DispatchEvent(ctx context.Context, name string, detail any) error {
	_, err := b.Call(ctx, "page.dispatch", map[string]any{"name": name, "detail": detail})
	return err
}

func (b *Bridge) Listen(ctx context.Context, name string) error {
	b.mu.Lock()
	_, known := b.watched[name]
	b.watched[name] = struct{}{}
	b.mu.Unlock()
	if known && b.Connected() {
		return nil
	}
	_, err := b.Call(ctx, "page.listen", map[string]string{"name": name})
	return err
}

func (b *Bridge) Subscribe(handler func(core.PageEvent)) func() {
	return b.events.Subscribe(handler)
}
