package sqlite

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/pkg/log"
)

type ArchiveRepo struct {
	db *sql.DB
}

func NewArchiveRepo(db *sql.DB) *ArchiveRepo {
	return &ArchiveRepo{db: db}
}

// MessageID is the archive key of a message; the same message captured twice
// maps to the same row.
func MessageID(chatID string, role core.Role, content string, ts time.Time) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s|%s|%s|%d", chatID, role, content, ts.UnixMilli())))
	return hex.EncodeToString(sum[:])
}

// SaveMessages inserts msgs, skipping rows already archived. It returns the
// number of new rows.
func (r *ArchiveRepo) SaveMessages(ctx context.Context, msgs []core.ArchivedMessage) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO messages
		(id, chat_id, contact_name, role, message_type, content, timestamp_source, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range msgs {
		id := m.ID
		if id == "" {
			id = MessageID(m.ChatID, m.Role, m.Content, m.Timestamp)
		}
		res, err := stmt.ExecContext(ctx, id, m.ChatID, m.ContactName, m.Role, m.MessageType, m.Content, m.Source, m.Timestamp.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to insert message: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *ArchiveRepo) SavePromotions(ctx context.Context, promos []core.ArchivedPromotion) (int, error) {
	inserted := 0
	for _, p := range promos {
		res, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO promotions
			(chat_id, name, sale_price, original_price, image, seen_at) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ChatID, p.Name, p.SalePrice, p.OriginalPrice, p.Image, p.SeenAt.UTC())
		if err != nil {
			return inserted, fmt.Errorf("failed to insert promotion: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (r *ArchiveRepo) SaveSnapshot(ctx context.Context, snap core.MemorySave) error {
	entries, err := json.Marshal(snap.ConversationMemory)
	if err != nil {
		return fmt.Errorf("failed to marshal memory entries: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO memory_snapshots (chat_id, contact_name, shop_name, entries, saved_at)
		VALUES (?, ?, ?, ?, ?)`,
		snap.ChatID, snap.ContactName, snap.ContextInfo.ShopName, string(entries), snap.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert memory snapshot: %w", err)
	}
	return nil
}

// GetMessages returns the last limit messages of a chat, oldest first.
func (r *ArchiveRepo) GetMessages(ctx context.Context, chatID string, limit int) ([]core.ArchivedMessage, error) {
	query := `SELECT id, chat_id, contact_name, role, message_type, content, timestamp_source, sent_at
		FROM messages WHERE chat_id = ? ORDER BY sent_at DESC, rowid DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.ArchivedMessage
	for rows.Next() {
		var m core.ArchivedMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.ContactName, &m.Role, &m.MessageType, &m.Content, &m.Source, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Str("chat_id", chatID).Int("count", len(messages)).Msg("loaded archived messages")
	return messages, nil
}

func (r *ArchiveRepo) CountMessages(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (r *ArchiveRepo) CountSnapshots(ctx context.Context, chatID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_snapshots WHERE chat_id = ?`, chatID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}
