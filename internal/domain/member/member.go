package member

import (
	"context"
	"time"
)

// Membership is a user's active participation in a request's chat.
type Membership struct {
	RequestID string    `json:"requestId"`
	UID       string    `json:"uid"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Store keeps membership rows and the request's member counter consistent.
// Join and Leave execute as single transactions; implementations must
// serialize concurrent calls touching the same request so the counter never
// loses an update.
type Store interface {
	// Join inserts a membership row and increments the member count by
	// exactly one. Joining twice is a no-op. Returns request.ErrNotFound or
	// request.ErrExpired when the request cannot be joined.
	Join(ctx context.Context, requestID, uid string, now time.Time) error

	// Leave deletes the row and decrements the count, clamped at zero.
	// Leaving without a row is a no-op.
	Leave(ctx context.Context, requestID, uid string) error

	Exists(ctx context.Context, requestID, uid string) (bool, error)
}

// Ledger is the membership surface the chat layer gates on.
type Ledger interface {
	Join(ctx context.Context, requestID, uid string) error
	Leave(ctx context.Context, requestID, uid string) error

	// IsMember reports whether uid holds a membership row or owns the
	// request. The owner is always implicitly a member.
	IsMember(ctx context.Context, requestID, uid string) (bool, error)
}
