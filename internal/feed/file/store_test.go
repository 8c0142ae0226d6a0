package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/nudge/internal/feed"
	"github.com/jmylchreest/nudge/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestOpen_WritesHeader(t *testing.T) {
	s := openTestStore(t)

	lines := readLines(t, s.Path())
	require.Len(t, lines, 1)

	var header schemaHeader
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	assert.Equal(t, SchemaVersion, header.NudgeSchemaVersion)

	// Reopening must not write a second header.
	_, err := Open(filepath.Dir(s.Path()), nil)
	require.NoError(t, err)
	assert.Len(t, readLines(t, s.Path()), 1)
}

func TestStore_CreateAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	id1, err := s.Create(ctx, "u1", model.Payload{Type: model.TypeStreak, Title: "7 day streak"})
	require.NoError(t, err)
	id2, err := s.Create(ctx, "u1", model.Payload{Type: model.TypeReward, Title: "Bonus"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "u2", model.Payload{Type: model.TypeReward, Title: "Not yours"})
	require.NoError(t, err)

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, id1, got[0].ID)
	assert.Equal(t, id2, got[1].ID)
	assert.Equal(t, model.PriorityMedium, got[0].Priority)
	assert.False(t, got[0].Read)
	assert.False(t, got[0].Dismissed)
}

func TestStore_CreateRejectsEmptyTitle(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create(context.Background(), "u1", model.Payload{Type: model.TypeStreak})
	assert.ErrorIs(t, err, model.ErrEmptyTitle)

	_, err = s.Create(context.Background(), "", model.Payload{Title: "x"})
	assert.ErrorIs(t, err, model.ErrEmptyUserID)
}

func TestStore_DismissIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "u1", model.Payload{Type: model.TypeStreak, Title: "x"})
	require.NoError(t, err)

	require.NoError(t, s.Dismiss(ctx, id))
	require.NoError(t, s.Dismiss(ctx, id))

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Header, create, one dismissal.
	assert.Len(t, readLines(t, s.Path()), 3)

	err = s.Dismiss(ctx, "missing")
	assert.ErrorIs(t, err, feed.ErrNotFound)
	var be *feed.BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, feed.BackendFile, be.Backend)
}

func TestStore_SkipsMalformedLines(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "u1", model.Payload{Title: "x"})
	require.NoError(t, err)

	f, err := os.OpenFile(s.Path(), os.O_WRONLY|os.O_APPEND, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n{\"title\":\"no id\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
}

func TestStore_RejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, NotificationsFile)
	require.NoError(t, os.WriteFile(path, []byte("{\"nudge_schema_version\":99,\"created_at\":0}\n"), 0600))

	s, err := Open(dir, nil)
	require.NoError(t, err)
	_, err = s.List(context.Background(), "u1")
	assert.ErrorContains(t, err, "unsupported schema version")
}

func TestStore_Claim(t *testing.T) {
	s := openTestStore(t)
	amount := 100.0
	n := model.Notification{ID: "a", UserID: "u1", Type: model.TypeReward, Reward: &model.Reward{Kind: model.RewardPoints, Amount: &amount}}

	require.NoError(t, s.Claim(context.Background(), n))

	lines := readLines(t, filepath.Join(filepath.Dir(s.Path()), ClaimsFile))
	require.Len(t, lines, 2)

	var claim feed.Claim
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &claim))
	assert.Equal(t, "a", claim.NotificationID)
	assert.Equal(t, model.RewardPoints, claim.Reward.Kind)
}

func TestStore_Compact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	keep, err := s.Create(ctx, "u1", model.Payload{Title: "keep"})
	require.NoError(t, err)
	done, err := s.Create(ctx, "u1", model.Payload{Title: "done"})
	require.NoError(t, err)
	require.NoError(t, s.Dismiss(ctx, done))

	removed, err := s.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, readLines(t, s.Path()), 3)

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, keep, got[0].ID)

	// Dismissing again after compaction is still harmless.
	require.NoError(t, s.Dismiss(ctx, done))
	assert.Len(t, readLines(t, s.Path()), 3)

	_, err = os.Stat(s.Path() + ".bak")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_CreateRejectsOversizedRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "u1", model.Payload{Title: "small"})
	require.NoError(t, err)

	_, err = s.Create(ctx, "u2", model.Payload{Title: "big", Message: strings.Repeat("x", 2*maxLineSize)})
	assert.ErrorIs(t, err, ErrRecordTooLarge)

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Len(t, readLines(t, s.Path()), 2)
}

func TestStore_SkipsOversizedLines(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "u1", model.Payload{Title: "first"})
	require.NoError(t, err)

	// Another writer appended a record past the line limit.
	f, err := os.OpenFile(s.Path(), os.O_WRONLY|os.O_APPEND, 0600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"huge","userId":"u2","title":"` + strings.Repeat("x", 2*maxLineSize) + "\"}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	second, err := s.Create(ctx, "u1", model.Payload{Title: "second"})
	require.NoError(t, err)

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0].ID)
	assert.Equal(t, second, got[1].ID)

	require.NoError(t, s.Dismiss(ctx, first))

	removed, err := s.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Len(t, readLines(t, s.Path()), 3)
}

func TestForEachLine(t *testing.T) {
	input := "a\n\n" + strings.Repeat("x", maxLineSize+10) + "\nb\r\nc"

	type line struct {
		num     int
		text    string
		tooLong bool
	}
	var got []line
	err := forEachLine(strings.NewReader(input), func(n int, l []byte, tooLong bool) error {
		got = append(got, line{n, string(l), tooLong})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []line{
		{1, "a", false},
		{2, "", false},
		{3, "", true},
		{4, "b", false},
		{5, "c", false},
	}, got)
}

func TestStore_Closed(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.List(context.Background(), "u1")
	assert.ErrorIs(t, err, feed.ErrClosed)
	assert.ErrorIs(t, s.Dismiss(context.Background(), "a"), feed.ErrClosed)
}

func TestStore_Watch(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var snapshots [][]model.Notification
	latest := func() []model.Notification {
		mu.Lock()
		defer mu.Unlock()
		if len(snapshots) == 0 {
			return nil
		}
		return snapshots[len(snapshots)-1]
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, "u1", func(ns []model.Notification) {
			mu.Lock()
			defer mu.Unlock()
			snapshots = append(snapshots, ns)
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snapshots) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// A second handle simulates another process appending.
	producer, err := Open(filepath.Dir(s.Path()), nil)
	require.NoError(t, err)
	id, err := producer.Create(context.Background(), "u1", model.Payload{Title: "hello"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ns := latest()
		return len(ns) == 1 && ns[0].ID == id
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, producer.Dismiss(context.Background(), id))
	require.Eventually(t, func() bool {
		return len(latest()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
