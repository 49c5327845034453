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

// MembershipStore implements member.Store on Postgres. Join and Leave lock
// the request row with SELECT ... FOR UPDATE, which serializes all counter
// updates for one request while leaving other requests untouched.
type MembershipStore struct {
	db *pgxpool.Pool
}

// NewMembershipStore creates a new membership store.
func NewMembershipStore(db *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{db: db}
}

// Join inserts a membership row and increments the member count by exactly
// one. Joining twice is a no-op.
func (s *MembershipStore) Join(ctx context.Context, requestID, uid string, now time.Time) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("error beginning transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		var expiresAt time.Time
		err = tx.QueryRow(ctx, `
			SELECT expires_at FROM requests WHERE id = $1 FOR UPDATE
		`, requestID).Scan(&expiresAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return request.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("error locking request: %w", err)
		}
		if !expiresAt.After(now) {
			return request.ErrExpired
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO memberships (request_id, uid, joined_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (request_id, uid) DO NOTHING
		`, requestID, uid, now)
		if err != nil {
			return fmt.Errorf("error inserting membership: %w", err)
		}

		if tag.RowsAffected() > 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE requests SET member_count = member_count + 1 WHERE id = $1
			`, requestID); err != nil {
				return fmt.Errorf("error incrementing member count: %w", err)
			}
		}

		return tx.Commit(ctx)
	})
}

// Leave deletes the membership row and decrements the member count, clamped
// at zero. Leaving without a row, or on a deleted request, is a no-op.
func (s *MembershipStore) Leave(ctx context.Context, requestID, uid string) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("error beginning transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		var id string
		err = tx.QueryRow(ctx, `
			SELECT id FROM requests WHERE id = $1 FOR UPDATE
		`, requestID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error locking request: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			DELETE FROM memberships WHERE request_id = $1 AND uid = $2
		`, requestID, uid)
		if err != nil {
			return fmt.Errorf("error deleting membership: %w", err)
		}

		if tag.RowsAffected() > 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE requests SET member_count = GREATEST(member_count - 1, 0) WHERE id = $1
			`, requestID); err != nil {
				return fmt.Errorf("error decrementing member count: %w", err)
			}
		}

		return tx.Commit(ctx)
	})
}

// Exists reports whether a membership row is present.
func (s *MembershipStore) Exists(ctx context.Context, requestID, uid string) (bool, error) {
	var found bool
	err := withRetry(ctx, func() error {
		return s.db.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM memberships WHERE request_id = $1 AND uid = $2)
		`, requestID, uid).Scan(&found)
	})
	if err != nil {
		return false, fmt.Errorf("error checking membership: %w", err)
	}
	return found, nil
}
