// Package feed reconciles the two chat delivery paths a consumer may run
// concurrently: a push/subscribe stream and a fixed-interval poll of the
// latest window. Both paths only read the message log; the feed merges them
// into one ordered set keyed by message id, preferring push and keeping poll
// as the liveness fallback.
package feed

import (
	"sort"
	"strconv"
	"sync"

	"poolorder/internal/domain/chat"
)

// Source identifies which delivery path produced a batch of messages.
type Source int

const (
	SourcePush Source = iota
	SourcePoll
)

// Feed is a client-side ordered set of messages. Safe for concurrent use by
// a push goroutine and a poll goroutine.
type Feed struct {
	mu         sync.Mutex
	seen       map[string]struct{}
	order      []chat.Message // sorted by (createdAt, id)
	pushActive bool
}

// New creates an empty feed. Push starts inactive, so polling runs until a
// subscription reports in.
func New() *Feed {
	return &Feed{seen: make(map[string]struct{})}
}

// key dedupes overlapping push and poll results. Messages normally carry an
// id; a synthesized createdAt+uid key covers payloads that lost theirs.
func key(m chat.Message) string {
	if m.ID != "" {
		return m.ID
	}
	return strconv.FormatInt(m.CreatedAt.UnixNano(), 10) + "/" + m.UID
}

// Offer merges a batch from one delivery path and returns the messages that
// were actually new, in feed order. Duplicates are dropped regardless of
// which path delivered first.
func (f *Feed) Offer(src Source, msgs ...chat.Message) []chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	if src == SourcePush {
		f.pushActive = true
	}

	var added []chat.Message
	for _, m := range msgs {
		k := key(m)
		if _, dup := f.seen[k]; dup {
			continue
		}
		f.seen[k] = struct{}{}

		i := sort.Search(len(f.order), func(i int) bool { return m.Less(f.order[i]) })
		f.order = append(f.order, chat.Message{})
		copy(f.order[i+1:], f.order[i:])
		f.order[i] = m

		added = append(added, m)
	}

	sort.Slice(added, func(i, j int) bool { return added[i].Less(added[j]) })
	return added
}

// SetPushActive records the subscription state. The consumer calls this with
// false when the push path fails (permission or connectivity), which
// re-enables polling without losing messages.
func (f *Feed) SetPushActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushActive = active
}

// ShouldPoll reports whether the poll fallback should run. A healthy push
// subscription suppresses it.
func (f *Feed) ShouldPoll() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.pushActive
}

// Messages returns the merged log, oldest to newest.
func (f *Feed) Messages() []chat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Message(nil), f.order...)
}

// Len returns the number of distinct messages observed.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}
