package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrAccessDenied means the caller is neither a member nor the owner.
// Distinct from request.ErrExpired so clients can offer a join action only
// when joining would actually fix the problem.
var ErrAccessDenied = errors.New("join required")

// Message is an ordered chat entry scoped to one request. Messages are never
// mutated after append.
type Message struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"requestId"`
	UID         string    `json:"uid"`
	DisplayName string    `json:"displayName"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Less reports whether m sorts before other in the total (createdAt, id)
// order. The id tie-break keeps repeated reads stable when timestamps collide.
func (m Message) Less(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Page is one window of a request's message log, oldest to newest.
type Page struct {
	Items   []Message `json:"items"`
	HasMore bool      `json:"hasMore"`
}

// Cursor addresses a position in the (createdAt, id) order. Its string form
// is opaque to clients.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorFor returns the cursor addressing m.
func CursorFor(m Message) Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

func (c Cursor) String() string {
	return strconv.FormatInt(c.CreatedAt.UnixMicro(), 10) + "." + c.ID
}

// ParseCursor parses the wire form produced by Cursor.String.
func ParseCursor(s string) (Cursor, error) {
	ts, id, ok := strings.Cut(s, ".")
	if !ok {
		return Cursor{}, fmt.Errorf("malformed cursor %q", s)
	}
	micros, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("malformed cursor %q: %w", s, err)
	}
	return Cursor{CreatedAt: time.UnixMicro(micros).UTC(), ID: id}, nil
}

// Store is the append-only message log. The log is the single source of
// truth for both the push and the poll delivery paths.
type Store interface {
	Append(ctx context.Context, m *Message) error

	// ListLatest returns the newest limit messages, oldest to newest.
	// HasMore is set when older history exists beyond the window.
	ListLatest(ctx context.Context, requestID string, limit int) (Page, error)

	// ListBefore returns up to limit messages strictly older than the cursor
	// position, oldest to newest.
	ListBefore(ctx context.Context, requestID string, before Cursor, limit int) (Page, error)
}

// RateLimiter bounds how fast one user may send to one request.
type RateLimiter interface {
	Allow(ctx context.Context, uid, requestID string) (bool, error)
}

// Publisher fans an accepted message out to push subscribers. The push path
// is best-effort; the log stays authoritative.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subject returns the push topic for a request's messages.
func Subject(requestID string) string {
	return "chat." + requestID + ".messages"
}
