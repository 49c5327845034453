package storage

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"poolorder/internal/config"
)

// NewPool opens a pgx connection pool and verifies connectivity.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id TEXT PRIMARY KEY,
	item TEXT NOT NULL,
	platform TEXT NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	lng DOUBLE PRECISION NOT NULL,
	geohash TEXT NOT NULL,
	owner_uid TEXT NOT NULL,
	owner_display_name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	member_count INT NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_requests_geohash ON requests (geohash, expires_at);
CREATE INDEX IF NOT EXISTS idx_requests_owner ON requests (owner_uid, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_requests_expires ON requests (expires_at);

CREATE TABLE IF NOT EXISTS memberships (
	request_id TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
	uid TEXT NOT NULL,
	joined_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (request_id, uid)
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT NOT NULL,
	request_id TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
	uid TEXT NOT NULL,
	display_name TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (request_id, id)
);
CREATE INDEX IF NOT EXISTS idx_messages_order ON messages (request_id, created_at, id);
`

// EnsureSchema creates the three collections if they do not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("error ensuring schema: %w", err)
	}
	return nil
}

// withRetry runs op and retries it exactly once on transient persistence
// errors. Validation-class and not-found errors are never retried.
func withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !retryable(ctx, err) {
		return err
	}
	return op()
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
