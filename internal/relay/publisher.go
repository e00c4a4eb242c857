// Package relay carries events to the collaborator and commands back over
// watermill topics.
package relay

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/metrics"
	"github.com/sandevgo/verve/pkg/log"
)

const (
	TopicEvents   = "verve.events"
	TopicCommands = "verve.commands"
	TopicReplies  = "verve.replies"

	MetadataType = "type"
)

// Publisher is the core.Relay over a watermill publisher. Failures are logged
// and counted; callers never see them.
type Publisher struct {
	pub     message.Publisher
	topic   string
	metrics *metrics.Metrics
}

func NewPublisher(pub message.Publisher, topic string, m *metrics.Metrics) *Publisher {
	if topic == "" {
		topic = TopicEvents
	}
	return &Publisher{pub: pub, topic: topic, metrics: m}
}

func (p *Publisher) Publish(ctx context.Context, kind core.EventType, payload any) {
	logger := log.FromCtx(ctx)

	msg, err := NewMessage(kind, payload)
	if err != nil {
		logger.Error().Err(err).Str("type", string(kind)).Msg("failed to encode event")
		p.metrics.Publish(string(kind), "encode_error")
		return
	}
	msg.SetContext(ctx)

	if err := p.pub.Publish(p.topic, msg); err != nil {
		logger.Warn().Err(err).Str("type", string(kind)).Msg("failed to publish event")
		p.metrics.Publish(string(kind), "error")
		return
	}
	p.metrics.Publish(string(kind), "ok")
}

// NewMessage wraps payload in an envelope message tagged with its type.
func NewMessage(kind core.EventType, payload any) (*message.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(core.Envelope{Type: kind, Payload: body})
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set(MetadataType, string(kind))
	return msg, nil
}

// DecodeEnvelope reads an envelope back from a message.
func DecodeEnvelope(msg *message.Message) (core.Envelope, error) {
	var env core.Envelope
	err := json.Unmarshal(msg.Payload, &env)
	return env, err
}
