package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sandevgo/verve/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

type sent struct {
	to   tele.Recipient
	what string
	opts []interface{}
}

type fakePoster struct {
	sent []sent
	err  error
}

func (p *fakePoster) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.sent = append(p.sent, sent{to: to, what: what.(string), opts: opts})
	return &tele.Message{}, nil
}

func envelope(t *testing.T, kind core.EventType, payload any) core.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return core.Envelope{Type: kind, Payload: raw}
}

func hasOpt(opts []interface{}, want interface{}) bool {
	for _, o := range opts {
		if o == want {
			return true
		}
	}
	return false
}

func TestNotifier_ClickError(t *testing.T) {
	p := &fakePoster{}
	n := NewNotifier(p, 42, NewFormatter(time.UTC))

	err := n.Handle(context.Background(), envelope(t, core.EventClickError, core.ClickError{Message: "未找到联系人元素"}))
	require.NoError(t, err)
	require.Len(t, p.sent, 1)

	msg := p.sent[0]
	assert.Equal(t, "42", msg.to.Recipient())
	assert.Contains(t, msg.what, "联系人轮询已停止")
	assert.Contains(t, msg.what, "未找到联系人元素")
	assert.True(t, hasOpt(msg.opts, tele.ModeHTML))
	assert.False(t, hasOpt(msg.opts, tele.Silent), "errors ring")
}

func TestNotifier_CustomerMessage(t *testing.T) {
	p := &fakePoster{}
	n := NewNotifier(p, 42, NewFormatter(time.FixedZone("CST", 8*3600)))

	update := core.MemoryUpdate{
		ContactName: "王女士",
		ContextInfo: core.ContextInfo{ShopName: "悦享足道（万达店）"},
		Message: core.ChatMessage{
			MessageType: core.MessageCustomer,
			Content:     "[客户] 周六下午还有位置吗",
			Timestamp:   time.Date(2026, 5, 10, 6, 30, 0, 0, time.UTC),
		},
	}
	require.NoError(t, n.Handle(context.Background(), envelope(t, core.EventMemoryUpdate, update)))
	require.Len(t, p.sent, 1)

	msg := p.sent[0]
	assert.Contains(t, msg.what, "王女士")
	assert.Contains(t, msg.what, "悦享足道（万达店）")
	assert.Contains(t, msg.what, "05-10 14:30")
	assert.Contains(t, msg.what, "周六下午还有位置吗")
	assert.True(t, hasOpt(msg.opts, tele.Silent))
}

func TestNotifier_Ignores(t *testing.T) {
	tests := []struct {
		name string
		env  func(t *testing.T) core.Envelope
	}{
		{
			name: "shop_message",
			env: func(t *testing.T) core.Envelope {
				return envelope(t, core.EventMemoryUpdate, core.MemoryUpdate{Message: core.ChatMessage{MessageType: core.MessageShop, Content: "[商家] 有的"}})
			},
		},
		{
			name: "progress",
			env: func(t *testing.T) core.Envelope {
				return envelope(t, core.EventClickProgress, core.ClickProgress{Current: 1, Total: 2})
			},
		},
		{
			name: "shop_info",
			env: func(t *testing.T) core.Envelope {
				return envelope(t, core.EventShopInfo, core.ShopInfoUpdate{ShopName: "x"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePoster{}
			n := NewNotifier(p, 42, NewFormatter(time.UTC))

			require.NoError(t, n.Handle(context.Background(), tt.env(t)))
			assert.Empty(t, p.sent)
		})
	}
}

func TestNotifier_Options(t *testing.T) {
	clickErr := func(t *testing.T) core.Envelope {
		return envelope(t, core.EventClickError, core.ClickError{Message: "x"})
	}
	customer := func(t *testing.T) core.Envelope {
		return envelope(t, core.EventMemoryUpdate, core.MemoryUpdate{Message: core.ChatMessage{MessageType: core.MessageCustomer, Content: "[客户] 在吗"}})
	}

	tests := []struct {
		name       string
		opts       []NotifyOption
		env        func(t *testing.T) core.Envelope
		wantSent   bool
		wantSilent bool
	}{
		{name: "quiet_errors", opts: []NotifyOption{WithAudibleErrors(false)}, env: clickErr, wantSent: true, wantSilent: true},
		{name: "loud_messages", opts: []NotifyOption{WithSilentMessages(false)}, env: customer, wantSent: true, wantSilent: false},
		{name: "messages_off", opts: []NotifyOption{WithCustomerMessages(false)}, env: customer},
		{name: "messages_off_errors_still_sent", opts: []NotifyOption{WithCustomerMessages(false)}, env: clickErr, wantSent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePoster{}
			n := NewNotifier(p, 42, NewFormatter(time.UTC), tt.opts...)

			require.NoError(t, n.Handle(context.Background(), tt.env(t)))
			if !tt.wantSent {
				assert.Empty(t, p.sent)
				return
			}
			require.Len(t, p.sent, 1)
			assert.Equal(t, tt.wantSilent, hasOpt(p.sent[0].opts, tele.Silent))
		})
	}
}

func TestNotifier_Errors(t *testing.T) {
	n := NewNotifier(&fakePoster{}, 42, NewFormatter(time.UTC))
	err := n.Handle(context.Background(), core.Envelope{Type: core.EventClickError, Payload: json.RawMessage(`"oops"`)})
	assert.Error(t, err)

	n = NewNotifier(&fakePoster{err: errors.New("flood wait")}, 42, NewFormatter(time.UTC))
	err = n.Handle(context.Background(), envelope(t, core.EventClickError, core.ClickError{Message: "x"}))
	assert.EqualError(t, err, "flood wait")
}

func TestFormatter_Result(t *testing.T) {
	f := NewFormatter(time.UTC)

	tests := []struct {
		name    string
		res     core.CommandResult
		icon    string
		contain []string
	}{
		{
			name:    "started",
			res:     core.CommandResult{Status: "started"},
			icon:    "✅",
			contain: []string{"startExtraction", "started"},
		},
		{
			name:    "failed",
			res:     core.CommandResult{Status: "failed", Message: "未找到消息输入框"},
			icon:    "❌",
			contain: []string{"未找到消息输入框"},
		},
		{
			name:    "shop",
			res:     core.CommandResult{ShopName: "悦享足道（万达店）"},
			icon:    "✅",
			contain: []string{"悦享足道（万达店）"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Result("startExtraction", tt.res)
			assert.True(t, strings.HasPrefix(out, tt.icon), out)
			for _, c := range tt.contain {
				assert.Contains(t, out, c)
			}
		})
	}
}

func TestFormatter_Quote(t *testing.T) {
	f := NewFormatter(nil)
	assert.Equal(t, "> 第一行\n> 第二行\n", f.Quote("第一行\n第二行\n"))
}

func TestSplitHTML(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{name: "fits", text: "short", maxLen: 10, want: []string{"short"}},
		{name: "newline_boundary", text: "aaaa\nbbbb\ncccc", maxLen: 10, want: []string{"aaaa\nbbbb", "cccc"}},
		{name: "hard_cut", text: "abcdefghij", maxLen: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "keeps_runes_whole", text: "你好世界", maxLen: 4, want: []string{"你", "好", "世", "界"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitHTML(tt.text, tt.maxLen)
			assert.Equal(t, tt.want, got)
			for _, chunk := range got {
				assert.True(t, utf8.ValidString(chunk))
			}
		})
	}
}
