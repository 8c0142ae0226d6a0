package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/nudge/internal/model"
)

var epoch = time.Unix(1700000000, 0)

func testNotification(id string, createdAt int) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    "u1",
		Type:      model.TypeStreak,
		Title:     "title " + id,
		CreatedAt: epoch.Add(time.Duration(createdAt) * time.Second),
	}
}

func TestQueue_PushPop(t *testing.T) {
	q := New()
	assert.Equal(t, 0, q.Len())

	assert.True(t, q.PushBack(testNotification("a", 1)))
	assert.True(t, q.PushBack(testNotification("b", 2)))
	assert.False(t, q.PushBack(testNotification("a", 1)), "duplicate id must be rejected")
	assert.Equal(t, []string{"a", "b"}, q.IDs())

	n, ok := q.PopFront()
	require.True(t, ok)
	assert.Equal(t, "a", n.ID)
	assert.False(t, q.Contains("a"))
	assert.True(t, q.Contains("b"))

	_, _ = q.PopFront()
	_, ok = q.PopFront()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_RemoveAndClear(t *testing.T) {
	q := New()
	q.PushBack(testNotification("a", 1))
	q.PushBack(testNotification("b", 2))
	q.PushBack(testNotification("c", 3))

	assert.True(t, q.Remove("b"))
	assert.False(t, q.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, q.IDs())
	assert.Equal(t, 2, q.Len())

	q.Clear()
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Contains("a"))
	assert.True(t, q.PushBack(testNotification("a", 1)))
}

func TestTombstones(t *testing.T) {
	ts := NewTombstones(time.Minute)
	ts.Add("a", epoch)

	assert.True(t, ts.Contains("a", epoch.Add(30*time.Second)))
	assert.False(t, ts.Contains("b", epoch))
	assert.False(t, ts.Contains("a", epoch.Add(time.Minute)), "expired tombstone")
	assert.Equal(t, 0, ts.Len())
}

func TestTombstones_NoTTL(t *testing.T) {
	ts := NewTombstones(0)
	ts.Add("a", epoch)
	assert.True(t, ts.Contains("a", epoch.Add(24*time.Hour)))
}

func TestTombstones_Prune(t *testing.T) {
	ts := NewTombstones(time.Minute)
	ts.Add("still-delivered", epoch)
	ts.Add("propagated", epoch)
	ts.Add("old", epoch.Add(-2*time.Minute))

	removed := ts.Prune(map[string]bool{"still-delivered": true, "old": true}, epoch)
	assert.Equal(t, 2, removed)
	assert.True(t, ts.Contains("still-delivered", epoch))
	assert.False(t, ts.Contains("propagated", epoch))
	assert.False(t, ts.Contains("old", epoch))

	ts.Clear()
	assert.Equal(t, 0, ts.Len())
}
