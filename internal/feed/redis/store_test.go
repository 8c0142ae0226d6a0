package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/nudge/internal/feed"
	"github.com/jmylchreest/nudge/internal/model"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewWithClient(rdb, "", nil)

	t.Cleanup(func() {
		_ = s.Close()
		mr.Close()
	})
	return s, mr
}

func TestStore_CreateAndList(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	id1, err := s.Create(ctx, "u1", model.Payload{Type: model.TypeAchievement, Title: "First steps"})
	require.NoError(t, err)
	id2, err := s.Create(ctx, "u1", model.Payload{Type: model.TypeStreak, Title: "3 days"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "u2", model.Payload{Type: model.TypeStreak, Title: "other"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("nudge:notification:"+id1))
	members, err := mr.ZMembers("nudge:user:u1:feed")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{id1, id2}, members)

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, id1, got[0].ID)
	assert.Equal(t, id2, got[1].ID)
	assert.Equal(t, model.TypeAchievement, got[0].Type)
}

func TestStore_ListEmpty(t *testing.T) {
	s, _ := setupTestStore(t)
	got, err := s.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_ListSkipsMissingAndMalformed(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "u1", model.Payload{Title: "ok"})
	require.NoError(t, err)

	_, err = mr.ZAdd("nudge:user:u1:feed", 1, "ghost")
	require.NoError(t, err)
	_, err = mr.ZAdd("nudge:user:u1:feed", 2, "garbled")
	require.NoError(t, err)
	require.NoError(t, mr.Set("nudge:notification:garbled", "{nope"))

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
}

func TestStore_Dismiss(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "u1", model.Payload{Title: "x"})
	require.NoError(t, err)

	require.NoError(t, s.Dismiss(ctx, id))
	require.NoError(t, s.Dismiss(ctx, id), "dismissing twice is harmless")

	got, err := s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	raw, err := mr.Get("nudge:notification:" + id)
	require.NoError(t, err)
	var n model.Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.True(t, n.Dismissed)

	assert.ErrorIs(t, s.Dismiss(ctx, "missing"), feed.ErrNotFound)
}

func TestStore_Claim(t *testing.T) {
	s, mr := setupTestStore(t)
	n := model.Notification{ID: "a", UserID: "u1", Type: model.TypeReward, Reward: &model.Reward{Kind: model.RewardBadge, Item: "Early Bird"}}

	require.NoError(t, s.Claim(context.Background(), n))

	items, err := mr.List("nudge:claims")
	require.NoError(t, err)
	require.Len(t, items, 1)

	var claim feed.Claim
	require.NoError(t, json.Unmarshal([]byte(items[0]), &claim))
	assert.Equal(t, "a", claim.NotificationID)
	assert.Equal(t, "Early Bird", claim.Reward.Item)
}

func TestStore_Watch(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	existing, err := s.Create(context.Background(), "u1", model.Payload{Title: "before"})
	require.NoError(t, err)

	var mu sync.Mutex
	var snapshots [][]model.Notification
	latestIDs := func() []string {
		mu.Lock()
		defer mu.Unlock()
		if len(snapshots) == 0 {
			return nil
		}
		ids := []string{}
		for _, n := range snapshots[len(snapshots)-1] {
			ids = append(ids, n.ID)
		}
		return ids
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
		ids := latestIDs()
		return len(ids) == 1 && ids[0] == existing
	}, 2*time.Second, 10*time.Millisecond)

	added, err := s.Create(context.Background(), "u1", model.Payload{Title: "after"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(latestIDs()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Dismiss(context.Background(), existing))
	require.Eventually(t, func() bool {
		ids := latestIDs()
		return len(ids) == 1 && ids[0] == added
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
