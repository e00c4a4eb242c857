package telegram

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/verve/internal/core"
	tele "gopkg.in/telebot.v3"
)

// Notifier turns relay events into messages for the owner.
type Notifier struct {
	sender *sender
	owner  tele.Recipient
	format *Formatter

	audibleErrors    bool
	silentMessages   bool
	customerMessages bool
}

type NotifyOption func(*Notifier)

// WithAudibleErrors controls whether click errors ring on the owner's device.
func WithAudibleErrors(on bool) NotifyOption {
	return func(n *Notifier) { n.audibleErrors = on }
}

func WithSilentMessages(on bool) NotifyOption {
	return func(n *Notifier) { n.silentMessages = on }
}

// WithCustomerMessages turns forwarding of new customer messages on or off.
func WithCustomerMessages(on bool) NotifyOption {
	return func(n *Notifier) { n.customerMessages = on }
}

func NewNotifier(p poster, ownerID int64, format *Formatter, opts ...NotifyOption) *Notifier {
	n := &Notifier{
		sender:           newSender(p),
		owner:            &tele.User{ID: ownerID},
		format:           format,
		audibleErrors:    true,
		silentMessages:   true,
		customerMessages: true,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Handle reports click errors and new customer messages; everything else is
// ignored.
func (n *Notifier) Handle(ctx context.Context, env core.Envelope) error {
	switch env.Type {
	case core.EventClickError:
		var e core.ClickError
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return fmt.Errorf("decode click error: %w", err)
		}
		return n.sender.sendMarkdown(ctx, n.owner, n.format.ClickError(e), !n.audibleErrors)

	case core.EventMemoryUpdate:
		var u core.MemoryUpdate
		if err := json.Unmarshal(env.Payload, &u); err != nil {
			return fmt.Errorf("decode memory update: %w", err)
		}
		if !n.customerMessages || u.Message.MessageType != core.MessageCustomer {
			return nil
		}
		return n.sender.sendMarkdown(ctx, n.owner, n.format.CustomerMessage(u), n.silentMessages)
	}
	return nil
}
