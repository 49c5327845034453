package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolorder/internal/adapter/memstore"
	"poolorder/internal/domain/chat"
	"poolorder/internal/domain/request"
)

func seedRequest(t *testing.T, store *memstore.Store, id string, expiresAt time.Time) {
	t.Helper()

	now := time.Now().UTC()
	err := store.Create(context.Background(), &request.Request{
		ID:          id,
		Item:        "groceries",
		Platform:    "QuickMart",
		Lat:         12.9716,
		Lng:         77.5946,
		Geohash:     "tdr1vut6cn",
		OwnerUID:    "owner",
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
		MemberCount: 1,
	})
	require.NoError(t, err)
}

func TestSweepOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("deletes expired requests and their data", func(t *testing.T) {
		store := memstore.New()
		seedRequest(t, store, "dead", now.Add(-time.Minute))
		seedRequest(t, store, "alive", now.Add(time.Hour))

		require.NoError(t, store.Append(ctx, &chat.Message{
			ID: "m1", RequestID: "dead", UID: "owner", Text: "hi", CreatedAt: now.Add(-2 * time.Minute),
		}))

		s := NewScheduler(store, Config{})
		n, err := s.SweepOnce(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = store.Get(ctx, "dead")
		assert.ErrorIs(t, err, request.ErrNotFound)
		_, err = store.Get(ctx, "alive")
		assert.NoError(t, err)

		// Memberships and messages go with the request.
		joined, err := store.Exists(ctx, "dead", "owner")
		require.NoError(t, err)
		assert.False(t, joined)
		page, err := store.ListLatest(ctx, "dead", 10)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("honors the batch limit", func(t *testing.T) {
		store := memstore.New()
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			seedRequest(t, store, id, now.Add(-time.Minute))
		}

		s := NewScheduler(store, Config{})
		n, err := s.SweepOnce(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.SweepOnce(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("nothing to do", func(t *testing.T) {
		store := memstore.New()
		seedRequest(t, store, "alive", now.Add(time.Hour))

		s := NewScheduler(store, Config{})
		n, err := s.SweepOnce(ctx, 50)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	// Overlapping sweeps must not double count or fail: deleting a request
	// that a concurrent sweep already removed is a no-op.
	t.Run("idempotent across overlapping sweeps", func(t *testing.T) {
		store := memstore.New()
		seedRequest(t, store, "dead", now.Add(-time.Minute))

		s := NewScheduler(store, Config{})
		n, err := s.SweepOnce(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.SweepOnce(ctx, 50)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestStartStop(t *testing.T) {
	store := memstore.New()
	seedRequest(t, store, "dead", time.Now().UTC().Add(-time.Minute))

	s := NewScheduler(store, Config{Interval: 10 * time.Millisecond, BatchSize: 50})
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), "dead")
		return err != nil
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
