package member

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolorder/internal/adapter/memstore"
	"poolorder/internal/domain/identity"
	"poolorder/internal/domain/request"
	requestservice "poolorder/internal/service/request"
)

var owner = identity.User{UID: "owner", DisplayName: "Owner"}

func setup(t *testing.T) (*Ledger, *requestservice.Service, *request.Request) {
	t.Helper()

	store := memstore.New()
	requests := requestservice.NewService(store, requestservice.Config{})
	ledger := NewLedger(store, store)

	r, err := requests.Create(context.Background(), owner, "groceries", "QuickMart", 12.9716, 77.5946, 0)
	require.NoError(t, err)
	return ledger, requests, r
}

func memberCount(t *testing.T, requests *requestservice.Service, id string) int {
	t.Helper()
	r, err := requests.Get(context.Background(), id)
	require.NoError(t, err)
	return r.MemberCount
}

func TestJoin(t *testing.T) {
	ctx := context.Background()

	t.Run("join increments the count once", func(t *testing.T) {
		ledger, requests, r := setup(t)

		require.NoError(t, ledger.Join(ctx, r.ID, "bob"))
		assert.Equal(t, 2, memberCount(t, requests, r.ID))

		ok, err := ledger.IsMember(ctx, r.ID, "bob")
		require.NoError(t, err)
		assert.True(t, ok)

		// Joining again changes nothing.
		require.NoError(t, ledger.Join(ctx, r.ID, "bob"))
		assert.Equal(t, 2, memberCount(t, requests, r.ID))
	})

	t.Run("missing request", func(t *testing.T) {
		ledger, _, _ := setup(t)
		assert.ErrorIs(t, ledger.Join(ctx, "nope", "bob"), request.ErrNotFound)
	})

	t.Run("expired request", func(t *testing.T) {
		ledger, requests, r := setup(t)

		_, err := requests.CloseNow(ctx, r.ID, owner.UID)
		require.NoError(t, err)

		assert.ErrorIs(t, ledger.Join(ctx, r.ID, "bob"), request.ErrExpired)
	})

	t.Run("concurrent joins count every member", func(t *testing.T) {
		ledger, requests, r := setup(t)

		uids := []string{"bob", "carol", "dave", "erin"}
		var wg sync.WaitGroup
		for _, uid := range uids {
			wg.Add(1)
			go func(uid string) {
				defer wg.Done()
				assert.NoError(t, ledger.Join(ctx, r.ID, uid))
			}(uid)
		}
		wg.Wait()

		assert.Equal(t, 1+len(uids), memberCount(t, requests, r.ID))
	})
}

func TestLeave(t *testing.T) {
	ctx := context.Background()

	t.Run("leave decrements once", func(t *testing.T) {
		ledger, requests, r := setup(t)

		require.NoError(t, ledger.Join(ctx, r.ID, "bob"))
		require.NoError(t, ledger.Leave(ctx, r.ID, "bob"))
		assert.Equal(t, 1, memberCount(t, requests, r.ID))

		ok, err := ledger.IsMember(ctx, r.ID, "bob")
		require.NoError(t, err)
		assert.False(t, ok)

		// Leaving again is a no-op, the count never goes below the owner.
		require.NoError(t, ledger.Leave(ctx, r.ID, "bob"))
		assert.Equal(t, 1, memberCount(t, requests, r.ID))
	})

	t.Run("leaving without joining is a no-op", func(t *testing.T) {
		ledger, requests, r := setup(t)

		require.NoError(t, ledger.Leave(ctx, r.ID, "stranger"))
		assert.Equal(t, 1, memberCount(t, requests, r.ID))
	})

	t.Run("leaving a missing request is a no-op", func(t *testing.T) {
		ledger, _, _ := setup(t)
		assert.NoError(t, ledger.Leave(ctx, "nope", "bob"))
	})

	t.Run("rejoin after leave works", func(t *testing.T) {
		ledger, requests, r := setup(t)

		require.NoError(t, ledger.Join(ctx, r.ID, "bob"))
		require.NoError(t, ledger.Leave(ctx, r.ID, "bob"))
		require.NoError(t, ledger.Join(ctx, r.ID, "bob"))
		assert.Equal(t, 2, memberCount(t, requests, r.ID))
	})
}

func TestIsMember(t *testing.T) {
	ctx := context.Background()

	t.Run("owner needs no membership row", func(t *testing.T) {
		ledger, _, r := setup(t)

		ok, err := ledger.IsMember(ctx, r.ID, owner.UID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("stranger is not a member", func(t *testing.T) {
		ledger, _, r := setup(t)

		ok, err := ledger.IsMember(ctx, r.ID, "stranger")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing request propagates not found", func(t *testing.T) {
		ledger, _, _ := setup(t)

		_, err := ledger.IsMember(ctx, "nope", "bob")
		assert.ErrorIs(t, err, request.ErrNotFound)
	})

	// Joins that raced request creation stay countable after expiry: the
	// membership row survives until cleanup deletes the whole request.
	t.Run("membership survives expiry", func(t *testing.T) {
		ledger, requests, r := setup(t)

		require.NoError(t, ledger.Join(ctx, r.ID, "bob"))
		_, err := requests.CloseNow(ctx, r.ID, owner.UID)
		require.NoError(t, err)

		ok, err := ledger.IsMember(ctx, r.ID, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 2, memberCount(t, requests, r.ID))
	})
}
