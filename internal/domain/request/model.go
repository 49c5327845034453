package request

import (
	"context"
	"errors"
	"time"
)

// Common errors surfaced by the request layer. Handlers map these to HTTP
// status codes with errors.Is, so services wrap rather than replace them.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("request not found")
	ErrForbidden       = errors.New("forbidden")
	ErrExpired         = errors.New("request expired")
)

// Request is a time-bounded intent to pool an order at a location.
type Request struct {
	ID               string    `json:"id"`
	Item             string    `json:"item"`
	Platform         string    `json:"platform"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	Geohash          string    `json:"-"`
	OwnerUID         string    `json:"uid"`
	OwnerDisplayName string    `json:"displayName"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	MemberCount      int       `json:"memberCount"`
}

// Expired reports whether the request's time window has passed at now.
func (r *Request) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Nearby is a request annotated with its true distance from the query point.
type Nearby struct {
	Request
	DistanceM float64 `json:"distanceInM"`
}

// Store is the persistence surface for requests. Delete cascades to the
// request's memberships and messages; deleting an unknown id is a no-op.
type Store interface {
	// Create inserts the request and materializes the owner's membership row
	// in the same transaction.
	Create(ctx context.Context, r *Request) error

	Get(ctx context.Context, id string) (*Request, error)

	// SetExpiresAt moves the expiry timestamp. Used by close-now.
	SetExpiresAt(ctx context.Context, id string, at time.Time) error

	Delete(ctx context.Context, id string) error

	// ListByOwner returns the owner's requests, newest first.
	ListByOwner(ctx context.Context, ownerUID string) ([]Request, error)

	// FindInGeohashRange returns open requests (expiresAt > now) whose
	// geohash sorts within [start, end).
	FindInGeohashRange(ctx context.Context, start, end string, now time.Time, limit int) ([]Request, error)

	// FindExpired returns ids of requests with expiresAt <= now, capped at
	// limit, for the cleanup sweep.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}
