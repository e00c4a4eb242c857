package relay

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/pkg/log"
)

// EnvelopeHandler processes one event. Returned errors are logged; the message
// is acknowledged either way.
type EnvelopeHandler func(ctx context.Context, env core.Envelope) error

// Consume feeds every envelope on topic to handle until ctx is done.
func Consume(ctx context.Context, sub message.Subscriber, topic string, handle EnvelopeHandler) error {
	logger := log.FromCtx(ctx)

	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	for msg := range messages {
		env, err := DecodeEnvelope(msg)
		if err != nil {
			logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping unreadable envelope")
			msg.Ack()
			continue
		}
		if err := handle(ctx, env); err != nil {
			logger.Error().Err(err).Str("type", string(env.Type)).Msg("event handler failed")
		}
		msg.Ack()
	}
	return nil
}
