// Package archive stores what the collaborator receives so a session can be
// reviewed later.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/metrics"
	"github.com/sandevgo/verve/internal/relay"
	"github.com/sandevgo/verve/pkg/log"
)

type Service struct {
	sub     message.Subscriber
	repo    core.ArchiveRepository
	metrics *metrics.Metrics
	done    chan struct{}
}

func NewService(sub message.Subscriber, repo core.ArchiveRepository, m *metrics.Metrics) *Service {
	return &Service{sub: sub, repo: repo, metrics: m, done: make(chan struct{})}
}

func (s *Service) Start(ctx context.Context) error {
	defer close(s.done)
	log.FromCtx(ctx).Info().Msg("archive listening for events")
	return relay.Consume(ctx, s.sub, relay.TopicEvents, s.Handle)
}

func (s *Service) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return nil
}

// Handle archives one event; types it does not keep are ignored.
func (s *Service) Handle(ctx context.Context, env core.Envelope) error {
	switch env.Type {
	case core.EventExtractedData:
		var data core.ExtractedDataWire
		if err := json.Unmarshal(env.Payload, &data); err != nil {
			return fmt.Errorf("decode extracted data: %w", err)
		}
		items, err := core.DecodeItems(data.Data)
		if err != nil {
			return err
		}
		return s.saveItems(ctx, items)

	case core.EventMemorySave:
		var snap core.MemorySave
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			return fmt.Errorf("decode memory save: %w", err)
		}
		return s.repo.SaveSnapshot(ctx, snap)
	}
	return nil
}

func (s *Service) saveItems(ctx context.Context, items []core.Item) error {
	var (
		msgs   []core.ArchivedMessage
		promos []core.ArchivedPromotion
	)
	for _, item := range items {
		switch v := item.(type) {
		case core.ChatMessage:
			chatID := v.ChatID
			if v.ContactChatID != "" {
				chatID = v.ContactChatID
			}
			msgs = append(msgs, core.ArchivedMessage{
				ChatID:      chatID,
				ContactName: v.ContactName,
				Role:        core.RoleFor(v.MessageType),
				MessageType: v.MessageType,
				Content:     v.OriginalContent,
				Timestamp:   v.Timestamp,
				Source:      v.TimestampSource,
			})
		case core.PromotionInfo:
			promos = append(promos, core.ArchivedPromotion{
				ChatID:        v.ContactChatID,
				Name:          v.Content.Name,
				SalePrice:     v.Content.SalePrice,
				OriginalPrice: v.Content.OriginalPrice,
				Image:         v.Content.Image,
				SeenAt:        time.Now(),
			})
		}
	}

	n, err := s.repo.SaveMessages(ctx, msgs)
	if err != nil {
		return err
	}
	p, err := s.repo.SavePromotions(ctx, promos)
	if err != nil {
		return err
	}
	s.metrics.Archived(n + p)

	log.FromCtx(ctx).Debug().Int("messages", n).Int("promotions", p).Msg("archived extracted items")
	return nil
}
