package core

import (
	"context"
	"time"
)

type ArchivedMessage struct {
	ID          string
	ChatID      string
	ContactName string
	Role        Role
	MessageType MessageType
	Content     string
	Timestamp   time.Time
	Source      TimestampSource
}

type ArchivedPromotion struct {
	ChatID        string
	Name          string
	SalePrice     string
	OriginalPrice string
	Image         string
	SeenAt        time.Time
}

type ArchiveRepository interface {
	SaveMessages(ctx context.Context, msgs []ArchivedMessage) (int, error)
	SavePromotions(ctx context.Context, promos []ArchivedPromotion) (int, error)
	SaveSnapshot(ctx context.Context, snap MemorySave) error
	GetMessages(ctx context.Context, chatID string, limit int) ([]ArchivedMessage, error)
	CountMessages(ctx context.Context) (int, error)
}
