package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageLess(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	earlier := Message{ID: "b", CreatedAt: t0}
	later := Message{ID: "a", CreatedAt: t0.Add(time.Second)}
	assert.True(t, earlier.Less(later))
	assert.False(t, later.Less(earlier))

	// Identical timestamps fall back to the id order.
	twin := Message{ID: "c", CreatedAt: t0}
	assert.True(t, earlier.Less(twin))
	assert.False(t, twin.Less(earlier))
}

func TestCursorRoundTrip(t *testing.T) {
	m := Message{ID: "msg-1", CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 123456000, time.UTC)}

	c := CursorFor(m)
	parsed, err := ParseCursor(c.String())
	require.NoError(t, err)
	assert.Equal(t, c.ID, parsed.ID)
	assert.True(t, c.CreatedAt.Equal(parsed.CreatedAt))
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "noseparator", "notanumber.id"} {
		_, err := ParseCursor(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "chat.r1.messages", Subject("r1"))
}
