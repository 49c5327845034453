package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"poolorder/internal/domain/request"
)

// RequestStore implements request.Store on Postgres.
type RequestStore struct {
	db *pgxpool.Pool
}

// NewRequestStore creates a new request store.
func NewRequestStore(db *pgxpool.Pool) *RequestStore {
	return &RequestStore{db: db}
}

const requestColumns = `id, item, platform, lat, lng, geohash, owner_uid, owner_display_name, created_at, expires_at, member_count`

func scanRequest(row pgx.Row, r *request.Request) error {
	return row.Scan(
		&r.ID, &r.Item, &r.Platform, &r.Lat, &r.Lng, &r.Geohash,
		&r.OwnerUID, &r.OwnerDisplayName, &r.CreatedAt, &r.ExpiresAt, &r.MemberCount,
	)
}

// Create inserts the request and the owner's membership row in one
// transaction, so the owner can chat without a separate join call.
func (s *RequestStore) Create(ctx context.Context, r *request.Request) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("error beginning transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx, `
			INSERT INTO requests (`+requestColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			r.ID, r.Item, r.Platform, r.Lat, r.Lng, r.Geohash,
			r.OwnerUID, r.OwnerDisplayName, r.CreatedAt, r.ExpiresAt, r.MemberCount,
		)
		if err != nil {
			return fmt.Errorf("error inserting request: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO memberships (request_id, uid, joined_at)
			VALUES ($1, $2, $3)
		`, r.ID, r.OwnerUID, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("error inserting owner membership: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// Get retrieves a request by id.
func (s *RequestStore) Get(ctx context.Context, id string) (*request.Request, error) {
	var r request.Request
	err := withRetry(ctx, func() error {
		return scanRequest(s.db.QueryRow(ctx, `
			SELECT `+requestColumns+` FROM requests WHERE id = $1
		`, id), &r)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, request.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying request: %w", err)
	}
	return &r, nil
}

// SetExpiresAt moves the expiry timestamp.
func (s *RequestStore) SetExpiresAt(ctx context.Context, id string, at time.Time) error {
	return withRetry(ctx, func() error {
		tag, err := s.db.Exec(ctx, `
			UPDATE requests SET expires_at = $2 WHERE id = $1
		`, id, at)
		if err != nil {
			return fmt.Errorf("error updating expiry: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return request.ErrNotFound
		}
		return nil
	})
}

// Delete removes the request and cascades to its memberships and messages.
// Deleting an already-deleted request is a no-op.
func (s *RequestStore) Delete(ctx context.Context, id string) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("error beginning transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE request_id = $1`, id); err != nil {
			return fmt.Errorf("error deleting messages: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM memberships WHERE request_id = $1`, id); err != nil {
			return fmt.Errorf("error deleting memberships: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM requests WHERE id = $1`, id); err != nil {
			return fmt.Errorf("error deleting request: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// ListByOwner returns the owner's requests, newest first.
func (s *RequestStore) ListByOwner(ctx context.Context, ownerUID string) ([]request.Request, error) {
	var out []request.Request
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx, `
			SELECT `+requestColumns+` FROM requests
			WHERE owner_uid = $1
			ORDER BY created_at DESC
		`, ownerUID)
		if err != nil {
			return fmt.Errorf("error querying requests: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var r request.Request
			if err := scanRequest(rows, &r); err != nil {
				return fmt.Errorf("error scanning request: %w", err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindInGeohashRange returns open requests whose geohash sorts in [start, end).
func (s *RequestStore) FindInGeohashRange(ctx context.Context, start, end string, now time.Time, limit int) ([]request.Request, error) {
	var out []request.Request
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx, `
			SELECT `+requestColumns+` FROM requests
			WHERE geohash >= $1 AND geohash < $2 AND expires_at > $3
			ORDER BY geohash
			LIMIT $4
		`, start, end, now, limit)
		if err != nil {
			return fmt.Errorf("error querying geohash range: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var r request.Request
			if err := scanRequest(rows, &r); err != nil {
				return fmt.Errorf("error scanning request: %w", err)
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindExpired returns ids of requests past their expiry, capped at limit.
func (s *RequestStore) FindExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := withRetry(ctx, func() error {
		rows, err := s.db.Query(ctx, `
			SELECT id FROM requests WHERE expires_at <= $1 LIMIT $2
		`, now, limit)
		if err != nil {
			return fmt.Errorf("error querying expired requests: %w", err)
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("error scanning id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
