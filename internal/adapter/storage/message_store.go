package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"poolorder/internal/domain/chat"
)

// MessageStore implements chat.Store on Postgres. The (created_at, id)
// composite order is applied in SQL so repeated reads always agree.
type MessageStore struct {
	db *pgxpool.Pool
}

// NewMessageStore creates a new message store.
func NewMessageStore(db *pgxpool.Pool) *MessageStore {
	return &MessageStore{db: db}
}

// Append inserts a message. Messages are never updated.
func (s *MessageStore) Append(ctx context.Context, m *chat.Message) error {
	return withRetry(ctx, func() error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO messages (id, request_id, uid, display_name, text, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.ID, m.RequestID, m.UID, m.DisplayName, m.Text, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("error inserting message: %w", err)
		}
		return nil
	})
}

// ListLatest returns the newest limit messages, oldest to newest.
func (s *MessageStore) ListLatest(ctx context.Context, requestID string, limit int) (chat.Page, error) {
	return s.listDescending(ctx, `
		SELECT id, request_id, uid, display_name, text, created_at
		FROM messages
		WHERE request_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, requestID, limit)
}

// ListBefore returns up to limit messages strictly older than the cursor
// position, oldest to newest.
func (s *MessageStore) ListBefore(ctx context.Context, requestID string, before chat.Cursor, limit int) (chat.Page, error) {
	return s.listDescending(ctx, `
		SELECT id, request_id, uid, display_name, text, created_at
		FROM messages
		WHERE request_id = $1 AND (created_at, id) < ($3, $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, requestID, limit, before.CreatedAt, before.ID)
}

// listDescending runs a newest-first query fetching one extra row to learn
// whether older history remains, then reverses into oldest-first order.
func (s *MessageStore) listDescending(ctx context.Context, query, requestID string, limit int, extraArgs ...interface{}) (chat.Page, error) {
	var page chat.Page
	err := withRetry(ctx, func() error {
		args := append([]interface{}{requestID, limit + 1}, extraArgs...)
		rows, err := s.db.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("error querying messages: %w", err)
		}
		defer rows.Close()

		items, err := scanMessages(rows)
		if err != nil {
			return err
		}

		page = chat.Page{}
		if len(items) > limit {
			items = items[:limit]
			page.HasMore = true
		}

		// Reverse newest-first into oldest-first.
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		page.Items = items
		return nil
	})
	if err != nil {
		return chat.Page{}, err
	}
	return page, nil
}

func scanMessages(rows pgx.Rows) ([]chat.Message, error) {
	var items []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.RequestID, &m.UID, &m.DisplayName, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return items, nil
}
