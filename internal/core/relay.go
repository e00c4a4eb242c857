package core

import (
	"context"
	"encoding/json"
	"time"
)

type EventType string

const (
	EventExtractedData EventType = "dianping_data"
	EventMemoryUpdate  EventType = "memory_update"
	EventMemorySave    EventType = "memory_save"
	EventContextSwitch EventType = "chat_context_switch"
	EventClickProgress EventType = "clickProgress"
	EventClickError    EventType = "clickError"
	EventShopInfo      EventType = "shopInfoUpdate"
	EventCommandResult EventType = "commandResult"
)

// Relay is the fire-and-forget channel to the collaborator.
// Publish never fails from the caller's point of view.
type Relay interface {
	Publish(ctx context.Context, kind EventType, payload any)
}

type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ExtractedData struct {
	PageType PageType `json:"pageType"`
	Data     []Item   `json:"data"`
}

// ExtractedDataWire is ExtractedData as received from the channel.
type ExtractedDataWire struct {
	PageType PageType          `json:"pageType"`
	Data     []json.RawMessage `json:"data"`
}

type MemoryUpdate struct {
	Action             string        `json:"action"`
	ChatID             string        `json:"chatId"`
	ContactName        string        `json:"contactName"`
	Message            ChatMessage   `json:"message"`
	ConversationMemory []MemoryEntry `json:"conversationMemory"`
	ContextInfo        ContextInfo   `json:"contextInfo"`
	Timestamp          time.Time     `json:"timestamp"`
}

type MemorySave struct {
	Action             string        `json:"action"`
	ChatID             string        `json:"chatId"`
	ContactName        string        `json:"contactName"`
	ConversationMemory []MemoryEntry `json:"conversationMemory"`
	ContextInfo        ContextInfo   `json:"contextInfo"`
	Timestamp          time.Time     `json:"timestamp"`
}

type ContextSwitch struct {
	Action             string        `json:"action"`
	OldChatID          string        `json:"oldChatId"`
	OldContactName     string        `json:"oldContactName"`
	NewChatID          string        `json:"newChatId"`
	NewContactName     string        `json:"newContactName"`
	ConversationMemory []MemoryEntry `json:"conversationMemory"`
	Timestamp          time.Time     `json:"timestamp"`
}

type ClickProgress struct {
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	Round     int    `json:"round"`
	Status    string `json:"status"`
	IsLooping bool   `json:"isLooping"`
}

type ClickError struct {
	Message string `json:"message"`
}

type ShopInfoUpdate struct {
	ShopName string `json:"shopName"`
}
