package core

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeItems(t *testing.T) {
	contact := ContactInfo{Name: "王女士", ChatID: "u-100"}
	batch := ExtractedData{
		PageType: PageChat,
		Data: []Item{
			ChatMessage{ID: "chat_1", Type: KindChatMessage, MessageType: MessageCustomer, Content: "[客户] 在吗"}.WithContact(contact),
			PromotionInfo{ID: "tuan_1", Type: KindPromotion, Content: PromotionContent{Name: "足疗60分钟", SalePrice: "98"}},
		},
	}
	raw, err := json.Marshal(batch)
	require.NoError(t, err)

	var wire ExtractedDataWire
	require.NoError(t, json.Unmarshal(raw, &wire))
	items, err := DecodeItems(wire.Data)
	require.NoError(t, err)
	require.Len(t, items, 2)

	msg, ok := items[0].(ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "u-100", msg.ContactChatID)
	assert.Equal(t, "王女士", msg.Contact.Name)
	assert.Equal(t, MessageCustomer, msg.MessageType)

	promo, ok := items[1].(PromotionInfo)
	require.True(t, ok)
	assert.Equal(t, "足疗60分钟", promo.Content.Name)
	assert.Empty(t, promo.ContactChatID)
}

func TestDecodeItems_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unknown_type", raw: `{"type":"banner"}`},
		{name: "not_an_object", raw: `"chat_message"`},
		{name: "bad_field", raw: `{"type":"chat_message","timestamp":"yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeItems([]json.RawMessage{json.RawMessage(tt.raw)})
			assert.Error(t, err)
		})
	}
}

func TestContactInfo_Key(t *testing.T) {
	assert.Equal(t, "u-1", ContactInfo{Name: "a", ChatID: "u-1"}.Key())
	assert.Equal(t, "a", ContactInfo{Name: "a"}.Key())
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, RoleUser, RoleFor(MessageCustomer))
	assert.Equal(t, RoleAssistant, RoleFor(MessageShop))
	assert.Equal(t, RoleAssistant, RoleFor(MessageUnknown))
}

func TestNewID(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	id := NewID("custom_msg", now)
	assert.Regexp(t, regexp.MustCompile(`^custom_msg_1778414400000_[0-9a-f-]{8}$`), id)
	assert.NotEqual(t, id, NewID("custom_msg", now))
}
