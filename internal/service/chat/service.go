// Package chat implements the per-request message log: gated sends and
// reads, cursor pagination, and fan-out to the push delivery path.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"poolorder/internal/domain/chat"
	"poolorder/internal/domain/identity"
	"poolorder/internal/domain/member"
	"poolorder/internal/domain/request"
)

// ErrRateLimited means the caller is sending too fast to one request.
var ErrRateLimited = errors.New("rate limited")

// Sweeper triggers a bounded expiry sweep. Used opportunistically when a
// read discovers an expired request; the periodic scheduler stays the
// authority.
type Sweeper interface {
	SweepOnce(ctx context.Context, limit int) (int, error)
}

// Config bounds the message log.
type Config struct {
	MaxMessageLength int
	PageSize         int
	InlineSweepBatch int
}

func (c Config) withDefaults() Config {
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = 400
	}
	if c.PageSize == 0 {
		c.PageSize = 50
	}
	if c.InlineSweepBatch == 0 {
		c.InlineSweepBatch = 100
	}
	return c
}

// Service is the chat channel for a request.
type Service struct {
	requests request.Store
	ledger   member.Ledger
	messages chat.Store
	limiter  chat.RateLimiter // optional
	pub      chat.Publisher   // optional
	sweeper  Sweeper          // optional
	cfg      Config
}

// NewService creates a new chat service. limiter, pub and sweeper may be nil.
func NewService(requests request.Store, ledger member.Ledger, messages chat.Store, limiter chat.RateLimiter, pub chat.Publisher, sweeper Sweeper, cfg Config) *Service {
	return &Service{
		requests: requests,
		ledger:   ledger,
		messages: messages,
		limiter:  limiter,
		pub:      pub,
		sweeper:  sweeper,
		cfg:      cfg.withDefaults(),
	}
}

// gate checks the request's state and the caller's access. Expiry is checked
// before membership so an expired request surfaces request.ErrExpired even
// to members, never chat.ErrAccessDenied.
func (s *Service) gate(ctx context.Context, requestID, uid string) error {
	r, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if r.Expired(time.Now().UTC()) {
		s.sweepInline(ctx)
		return fmt.Errorf("%w: closed at %s", request.ErrExpired, r.ExpiresAt.Format(time.RFC3339))
	}

	ok, err := s.ledger.IsMember(ctx, requestID, uid)
	if err != nil {
		return err
	}
	if !ok {
		return chat.ErrAccessDenied
	}
	return nil
}

// sweepInline runs a bounded best-effort sweep. Failures only get logged;
// the periodic scheduler will catch anything missed.
func (s *Service) sweepInline(ctx context.Context) {
	if s.sweeper == nil {
		return
	}
	if _, err := s.sweeper.SweepOnce(ctx, s.cfg.InlineSweepBatch); err != nil {
		log.Printf("inline cleanup sweep failed: %v", err)
	}
}

// Send appends a message to the request's log and fans it out to push
// subscribers. The caller must be the owner or a joined member.
func (s *Service) Send(ctx context.Context, requestID string, sender identity.User, text string) (*chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", request.ErrInvalidArgument)
	}
	if len([]rune(text)) > s.cfg.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", request.ErrInvalidArgument, s.cfg.MaxMessageLength)
	}

	if err := s.gate(ctx, requestID, sender.UID); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, sender.UID, requestID)
		if err != nil {
			// Rate limiting is advisory; a broken limiter must not block chat.
			log.Printf("rate limiter error: %v", err)
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	m := &chat.Message{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		UID:         sender.UID,
		DisplayName: sender.DisplayName,
		Text:        text,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.messages.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("error appending message: %w", err)
	}

	s.publish(m)
	return m, nil
}

// publish fans the message out on the push path. Best effort: the log is the
// source of truth and pollers will pick the message up regardless.
func (s *Service) publish(m *chat.Message) {
	if s.pub == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		log.Printf("error marshaling message for publish: %v", err)
		return
	}
	if err := s.pub.Publish(chat.Subject(m.RequestID), data); err != nil {
		log.Printf("error publishing message: %v", err)
	}
}

// List returns one window of the log, oldest to newest. A zero cursor means
// the latest window; otherwise messages strictly older than the cursor.
// limit is clamped to the configured page size.
func (s *Service) List(ctx context.Context, requestID string, caller identity.User, before chat.Cursor, limit int) (chat.Page, error) {
	if err := s.gate(ctx, requestID, caller.UID); err != nil {
		return chat.Page{}, err
	}

	if limit <= 0 || limit > s.cfg.PageSize {
		limit = s.cfg.PageSize
	}

	if before.IsZero() {
		return s.messages.ListLatest(ctx, requestID, limit)
	}
	return s.messages.ListBefore(ctx, requestID, before, limit)
}
