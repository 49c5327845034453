// Package member keeps membership rows and each request's member count
// consistent under concurrent joins and leaves.
package member

import (
	"context"
	"time"

	"poolorder/internal/domain/member"
	"poolorder/internal/domain/request"
)

// Ledger implements member.Ledger over the transactional stores. All
// counter mutation happens inside the store transaction; the ledger never
// caches membership state between calls.
type Ledger struct {
	requests request.Store
	members  member.Store
}

// NewLedger creates a new membership ledger.
func NewLedger(requests request.Store, members member.Store) *Ledger {
	return &Ledger{requests: requests, members: members}
}

// Join adds the caller to the request. Idempotent; rejects with
// request.ErrNotFound or request.ErrExpired.
func (l *Ledger) Join(ctx context.Context, requestID, uid string) error {
	return l.members.Join(ctx, requestID, uid, time.Now().UTC())
}

// Leave removes the caller. Idempotent; leaving a request you never joined
// is a no-op.
func (l *Ledger) Leave(ctx context.Context, requestID, uid string) error {
	return l.members.Leave(ctx, requestID, uid)
}

// IsMember reports whether uid may read and write the request's chat: the
// owner always may, anyone else needs a membership row.
func (l *Ledger) IsMember(ctx context.Context, requestID, uid string) (bool, error) {
	r, err := l.requests.Get(ctx, requestID)
	if err != nil {
		return false, err
	}
	if r.OwnerUID == uid {
		return true, nil
	}
	return l.members.Exists(ctx, requestID, uid)
}
