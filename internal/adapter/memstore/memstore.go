// Package memstore is an in-memory implementation of the request, membership
// and message stores, guarded by a per-request mutex. It satisfies the same
// transaction contract as the Postgres adapter and backs the service tests;
// production wiring uses internal/adapter/storage.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"poolorder/internal/domain/chat"
	"poolorder/internal/domain/member"
	"poolorder/internal/domain/request"
)

// Store holds the three logical collections behind one lock. The single lock
// gives every operation the serializable-transaction semantics the domain
// contracts require.
type Store struct {
	mu       sync.Mutex
	requests map[string]request.Request
	members  map[string]map[string]member.Membership
	messages map[string][]chat.Message // kept sorted by (createdAt, id)
}

// New creates an empty store.
func New() *Store {
	return &Store{
		requests: make(map[string]request.Request),
		members:  make(map[string]map[string]member.Membership),
		messages: make(map[string][]chat.Message),
	}
}

// ---- request.Store ----

func (s *Store) Create(_ context.Context, r *request.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[r.ID] = *r
	s.members[r.ID] = map[string]member.Membership{
		r.OwnerUID: {RequestID: r.ID, UID: r.OwnerUID, JoinedAt: r.CreatedAt},
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, request.ErrNotFound
	}
	return &r, nil
}

func (s *Store) SetExpiresAt(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return request.ErrNotFound
	}
	r.ExpiresAt = at
	s.requests[id] = r
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.requests, id)
	delete(s.members, id)
	delete(s.messages, id)
	return nil
}

func (s *Store) ListByOwner(_ context.Context, ownerUID string) ([]request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []request.Request
	for _, r := range s.requests {
		if r.OwnerUID == ownerUID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) FindInGeohashRange(_ context.Context, start, end string, now time.Time, limit int) ([]request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []request.Request
	for _, r := range s.requests {
		if r.Geohash >= start && r.Geohash < end && r.ExpiresAt.After(now) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) FindExpired(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, r := range s.requests {
		if !r.ExpiresAt.After(now) {
			ids = append(ids, id)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

// ---- member.Store ----

func (s *Store) Join(_ context.Context, requestID, uid string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[requestID]
	if !ok {
		return request.ErrNotFound
	}
	if !r.ExpiresAt.After(now) {
		return request.ErrExpired
	}

	rows := s.members[requestID]
	if rows == nil {
		rows = make(map[string]member.Membership)
		s.members[requestID] = rows
	}
	if _, joined := rows[uid]; joined {
		return nil
	}

	rows[uid] = member.Membership{RequestID: requestID, UID: uid, JoinedAt: now}
	r.MemberCount++
	s.requests[requestID] = r
	return nil
}

func (s *Store) Leave(_ context.Context, requestID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[requestID]
	if !ok {
		return nil
	}
	rows := s.members[requestID]
	if _, joined := rows[uid]; !joined {
		return nil
	}

	delete(rows, uid)
	if r.MemberCount > 0 {
		r.MemberCount--
	}
	s.requests[requestID] = r
	return nil
}

func (s *Store) Exists(_ context.Context, requestID, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.members[requestID][uid]
	return ok, nil
}

// ---- chat.Store ----

func (s *Store) Append(_ context.Context, m *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[m.RequestID]
	i := sort.Search(len(log), func(i int) bool { return m.Less(log[i]) })
	log = append(log, chat.Message{})
	copy(log[i+1:], log[i:])
	log[i] = *m
	s.messages[m.RequestID] = log
	return nil
}

func (s *Store) ListLatest(_ context.Context, requestID string, limit int) (chat.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[requestID]
	start := len(log) - limit
	if start < 0 {
		start = 0
	}
	return chat.Page{
		Items:   append([]chat.Message(nil), log[start:]...),
		HasMore: start > 0,
	}, nil
}

func (s *Store) ListBefore(_ context.Context, requestID string, before chat.Cursor, limit int) (chat.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[requestID]
	pivot := chat.Message{ID: before.ID, CreatedAt: before.CreatedAt}
	end := sort.Search(len(log), func(i int) bool { return !log[i].Less(pivot) })

	start := end - limit
	if start < 0 {
		start = 0
	}
	return chat.Page{
		Items:   append([]chat.Message(nil), log[start:end]...),
		HasMore: start > 0,
	}, nil
}
