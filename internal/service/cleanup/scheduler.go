// Package cleanup reclaims storage for expired requests. The periodic sweep
// is the authority; reads may additionally trigger bounded inline sweeps.
package cleanup

import (
	"context"
	"log"
	"time"

	"poolorder/internal/domain/request"
)

// Config drives the sweep loop.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = 5 * time.Minute
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	return c
}

// Scheduler periodically deletes expired requests together with their
// memberships and messages. Safe to run concurrently with itself: deleting
// an already-deleted request is a no-op in the store.
type Scheduler struct {
	store request.Store
	cfg   Config

	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a new cleanup scheduler.
func NewScheduler(store request.Store, cfg Config) *Scheduler {
	return &Scheduler{
		store: store,
		cfg:   cfg.withDefaults(),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.SweepOnce(ctx, s.cfg.BatchSize)
			if err != nil {
				log.Printf("cleanup sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("cleanup: deleted %d expired requests", n)
			}
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SweepOnce deletes up to limit expired requests, cascading to their
// memberships and messages. A failure on one request is logged and the sweep
// continues with the rest.
func (s *Scheduler) SweepOnce(ctx context.Context, limit int) (int, error) {
	ids, err := s.store.FindExpired(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if err := s.store.Delete(ctx, id); err != nil {
			log.Printf("cleanup: error deleting request %s: %v", id, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}
