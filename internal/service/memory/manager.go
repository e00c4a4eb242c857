// Package memory keeps the bounded conversation buffer of the contact that is
// currently open and reports it to the collaborator.
package memory

import (
	"context"

	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/log"
)

const DefaultCapacity = 20

// Manager is not safe for concurrent use; callers serialize access.
type Manager struct {
	relay    core.Relay
	clock    clock.Clock
	capacity int
	enabled  bool

	current  *core.ContactInfo
	shopName string
	buffer   []core.MemoryEntry
}

func NewManager(relay core.Relay, c clock.Clock, capacity int) *Manager {
	if c == nil {
		c = clock.Real()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{
		relay:    relay,
		clock:    c,
		capacity: capacity,
		enabled:  true,
	}
}

func (m *Manager) SetEnabled(enabled bool) {
	m.enabled = enabled
}

func (m *Manager) Enabled() bool {
	return m.enabled
}

// Current returns the identity memory is held for.
func (m *Manager) Current() (core.ContactInfo, bool) {
	if m.current == nil {
		return core.ContactInfo{}, false
	}
	return *m.current, true
}

func (m *Manager) ShopName() string {
	return m.shopName
}

// CombinedName is "shop - contact" when a shop label is known.
func (m *Manager) CombinedName() string {
	if m.current == nil {
		return ""
	}
	if m.shopName != "" {
		return m.shopName + " - " + m.current.Name
	}
	return m.current.Name
}

func (m *Manager) Context() core.ContextInfo {
	ci := core.ContextInfo{ShopName: m.shopName, CombinedName: m.CombinedName()}
	if m.current != nil {
		ci.ContactName = m.current.Name
		ci.ChatID = m.current.Key()
	}
	return ci
}

// Snapshot returns a copy of the buffer in conversational order.
func (m *Manager) Snapshot() []core.MemoryEntry {
	out := make([]core.MemoryEntry, len(m.buffer))
	copy(out, m.buffer)
	return out
}

// SwitchTo makes info the active contact. Switching away from a held contact
// saves its buffer and announces the switch before the new buffer starts.
// It reports whether the identity changed.
func (m *Manager) SwitchTo(ctx context.Context, info core.ContactInfo) bool {
	if !m.enabled {
		return false
	}

	if m.current != nil && m.current.Key() == info.Key() {
		if info.ShopName != "" {
			m.UpdateShopName(ctx, info.ShopName)
		}
		return false
	}

	prev := m.current
	if prev != nil {
		m.Flush(ctx)
		m.buffer = nil
	}

	next := info
	m.current = &next
	m.UpdateShopName(ctx, info.ShopName)

	if prev != nil {
		m.relay.Publish(ctx, core.EventContextSwitch, core.ContextSwitch{
			Action:             "switch",
			OldChatID:          prev.Key(),
			OldContactName:     prev.Name,
			NewChatID:          next.Key(),
			NewContactName:     next.Name,
			ConversationMemory: m.Snapshot(),
			Timestamp:          m.clock.Now(),
		})
	}

	log.FromCtx(ctx).Info().
		Str("chat_id", next.Key()).
		Str("contact", next.Name).
		Msg("switched active contact")
	return true
}

// UpdateShopName stores the shop label, announcing it when it changed.
func (m *Manager) UpdateShopName(ctx context.Context, name string) {
	if name == m.shopName {
		return
	}
	m.shopName = name
	m.relay.Publish(ctx, core.EventShopInfo, core.ShopInfoUpdate{ShopName: name})
}

// Record appends msg to the buffer, evicting the oldest entries past capacity.
// Only trigger=true reports the new message to the collaborator.
func (m *Manager) Record(ctx context.Context, msg core.ChatMessage, trigger bool) {
	if !m.enabled {
		return
	}

	m.buffer = append(m.buffer, core.MemoryEntry{
		Role:      core.RoleFor(msg.MessageType),
		Content:   msg.OriginalContent,
		Timestamp: msg.Timestamp,
		MessageID: msg.ID,
	})
	if over := len(m.buffer) - m.capacity; over > 0 {
		m.buffer = append(m.buffer[:0:0], m.buffer[over:]...)
	}

	if !trigger {
		return
	}

	ci := m.Context()
	m.relay.Publish(ctx, core.EventMemoryUpdate, core.MemoryUpdate{
		Action:             "add_message",
		ChatID:             ci.ChatID,
		ContactName:        ci.CombinedName,
		Message:            msg,
		ConversationMemory: m.Snapshot(),
		ContextInfo:        ci,
		Timestamp:          m.clock.Now(),
	})
}

// Flush sends the whole buffer and its context. Calling it twice sends twice.
func (m *Manager) Flush(ctx context.Context) {
	ci := m.Context()
	m.relay.Publish(ctx, core.EventMemorySave, core.MemorySave{
		Action:             "save",
		ChatID:             ci.ChatID,
		ContactName:        ci.CombinedName,
		ConversationMemory: m.Snapshot(),
		ContextInfo:        ci,
		Timestamp:          m.clock.Now(),
	})
	log.FromCtx(ctx).Debug().Str("chat_id", ci.ChatID).Int("entries", len(m.buffer)).Msg("memory flushed")
}

// HandlePageEvent flushes when the page is being hidden or unloaded.
func (m *Manager) HandlePageEvent(ctx context.Context, ev core.PageEvent) {
	switch {
	case ev.Kind == core.PageUnload:
	case ev.Kind == core.PageVisibility && ev.Hidden:
	default:
		return
	}
	m.FlushIfHeld(ctx)
}

// FlushIfHeld flushes only when an identity is held and the buffer is non-empty.
func (m *Manager) FlushIfHeld(ctx context.Context) bool {
	if m.current == nil || len(m.buffer) == 0 {
		return false
	}
	m.Flush(ctx)
	return true
}

// Clear drops the buffer without reporting it.
func (m *Manager) Clear() {
	m.buffer = nil
}
