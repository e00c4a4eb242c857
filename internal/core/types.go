package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageShop     MessageType = "shop"
	MessageCustomer MessageType = "customer"
	MessageUnknown  MessageType = "unknown"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RoleFor maps a message classification to the conversational role.
func RoleFor(t MessageType) Role {
	if t == MessageCustomer {
		return RoleUser
	}
	return RoleAssistant
}

type TimestampSource string

const (
	TimestampExtracted TimestampSource = "extracted"
	TimestampFallback  TimestampSource = "fallback"
)

type PageType string

const (
	PageChat    PageType = "chat_page"
	PageUnknown PageType = "unknown"
)

type ItemKind string

const (
	KindChatMessage ItemKind = "chat_message"
	KindPromotion   ItemKind = "tuan_info"
)

// ContactInfo is the identity of one contact as seen by a single detection pass.
type ContactInfo struct {
	Name      string    `json:"name"`
	ChatID    string    `json:"chatId"`
	ShopName  string    `json:"shopName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Key is the value memory switches compare on.
func (c ContactInfo) Key() string {
	if c.ChatID != "" {
		return c.ChatID
	}
	return c.Name
}

type MemoryEntry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"messageId"`
}

type ContextInfo struct {
	ShopName     string `json:"shopName"`
	ContactName  string `json:"contactName"`
	CombinedName string `json:"combinedName"`
	ChatID       string `json:"chatId"`
}

// Item is one extracted unit: a ChatMessage or a PromotionInfo.
type Item interface {
	ItemID() string
	Kind() ItemKind
	WithContact(info ContactInfo) Item
}

type ChatMessage struct {
	ID                string          `json:"id"`
	Type              ItemKind        `json:"type"`
	MessageType       MessageType     `json:"messageType"`
	Content           string          `json:"content"`
	OriginalContent   string          `json:"originalContent"`
	Timestamp         time.Time       `json:"timestamp"`
	OriginalTimestamp *time.Time      `json:"originalTimestamp,omitempty"`
	TimestampSource   TimestampSource `json:"timestampSource"`
	ChatID            string          `json:"chatId"`
	ContactName       string          `json:"contactName"`
	Contact           *ContactInfo    `json:"contactInfo,omitempty"`
	ContactChatID     string          `json:"contactChatId,omitempty"`
}

func (m ChatMessage) ItemID() string { return m.ID }
func (m ChatMessage) Kind() ItemKind { return KindChatMessage }

func (m ChatMessage) WithContact(info ContactInfo) Item {
	m.Contact = &info
	m.ContactChatID = info.ChatID
	return m
}

type PromotionContent struct {
	Name          string `json:"name"`
	SalePrice     string `json:"salePrice"`
	OriginalPrice string `json:"originalPrice"`
	Image         string `json:"image"`
}

type PromotionInfo struct {
	ID            string           `json:"id"`
	Type          ItemKind         `json:"type"`
	Content       PromotionContent `json:"content"`
	Contact       *ContactInfo     `json:"contactInfo,omitempty"`
	ContactChatID string           `json:"contactChatId,omitempty"`
}

func (p PromotionInfo) ItemID() string { return p.ID }
func (p PromotionInfo) Kind() ItemKind { return KindPromotion }

func (p PromotionInfo) WithContact(info ContactInfo) Item {
	p.Contact = &info
	p.ContactChatID = info.ChatID
	return p
}

// DecodeItems restores a batch of items from their JSON form.
func DecodeItems(raw []json.RawMessage) ([]Item, error) {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		var head struct {
			Type ItemKind `json:"type"`
		}
		if err := json.Unmarshal(r, &head); err != nil {
			return nil, fmt.Errorf("decode item type: %w", err)
		}

		switch head.Type {
		case KindChatMessage:
			var m ChatMessage
			if err := json.Unmarshal(r, &m); err != nil {
				return nil, fmt.Errorf("decode chat message: %w", err)
			}
			items = append(items, m)
		case KindPromotion:
			var p PromotionInfo
			if err := json.Unmarshal(r, &p); err != nil {
				return nil, fmt.Errorf("decode promotion: %w", err)
			}
			items = append(items, p)
		default:
			return nil, fmt.Errorf("unknown item type %q", head.Type)
		}
	}
	return items, nil
}

// CycleState is a snapshot of the click-cycle counters.
type CycleState struct {
	IsRunning      bool `json:"isRunning"`
	IndexInRound   int  `json:"indexInRound"`
	TotalPerRound  int  `json:"totalPerRound"`
	Round          int  `json:"round"`
	TotalProcessed int  `json:"totalProcessed"`
	Interval       int  `json:"interval"`
}

// NewID builds an item id of the form prefix_<unix ms>_<random>.
func NewID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), uuid.NewString()[:8])
}
