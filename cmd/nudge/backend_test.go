package main

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/nudge/internal/config"
	"github.com/jmylchreest/nudge/internal/feed/file"
	"github.com/jmylchreest/nudge/internal/model"
	"github.com/jmylchreest/nudge/internal/router"
)

func TestSessionConfig(t *testing.T) {
	c := config.DefaultConfig()
	c.Engine.Countdown = config.Duration(8 * time.Second)
	c.Engine.RecentDismissTTL = 0

	sc := sessionConfig(c, "u1")
	assert.Equal(t, "u1", sc.UserID)
	assert.Equal(t, 8*time.Second, sc.Countdown)
	assert.Equal(t, 50*time.Millisecond, sc.ProgressInterval)
	assert.Equal(t, 500*time.Millisecond, sc.ExitDuration)
	assert.Equal(t, 3*time.Second, sc.CelebrationDuration)
	assert.Equal(t, time.Duration(0), sc.RecentDismissTTL)
}

func TestFeedOptions(t *testing.T) {
	opts := feedOptions(config.DefaultConfig())
	assert.Equal(t, 500*time.Millisecond, opts.MinBackoff)
	assert.Equal(t, 30*time.Second, opts.MaxBackoff)
	assert.Equal(t, 2.0, opts.Factor)
	assert.True(t, opts.Jitter)
}

func TestNewRouter(t *testing.T) {
	c := config.DefaultConfig()
	assert.IsType(t, &router.Log{}, newRouter(c))

	c.Routes.BaseURL = "https://app.example.test"
	assert.IsType(t, &router.Opener{}, newRouter(c))
}

func TestOpenBackend_File(t *testing.T) {
	c := config.DefaultConfig()
	c.File.Dir = t.TempDir()

	backend, err := openBackend(context.Background(), c)
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()
	assert.IsType(t, &file.Store{}, backend)
}

func TestOpenBackend_Unknown(t *testing.T) {
	c := config.DefaultConfig()
	c.Feed.Backend = "kafka"

	_, err := openBackend(context.Background(), c)
	assert.Error(t, err)
}

func TestNewApp_FileBackend(t *testing.T) {
	c := config.DefaultConfig()
	c.File.Dir = t.TempDir()

	a, err := newApp(context.Background(), c, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", a.session.UserID())
	assert.NoError(t, a.Close())
}

func TestPayloadFromFlags(t *testing.T) {
	saved := sendOpts
	t.Cleanup(func() { sendOpts = saved })

	cmd := &cobra.Command{}
	cmd.Flags().Float64Var(&sendOpts.rewardAmount, "reward-amount", 0, "")
	require.NoError(t, cmd.Flags().Set("reward-amount", "50"))

	sendOpts.notificationType = "reward"
	sendOpts.title = "Bonus"
	sendOpts.message = "Well done"
	sendOpts.priority = "high"
	sendOpts.actionKind = "claim"
	sendOpts.rewardKind = "xp"
	sendOpts.expiresIn = time.Hour

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p, err := payloadFromFlags(cmd, now)
	require.NoError(t, err)

	assert.Equal(t, model.TypeReward, p.Type)
	assert.Equal(t, model.PriorityHigh, p.Priority)
	require.NotNil(t, p.Action)
	assert.Equal(t, model.ActionClaim, p.Action.Kind)
	require.NotNil(t, p.Reward)
	require.NotNil(t, p.Reward.Amount)
	assert.Equal(t, 50.0, *p.Reward.Amount)
	require.NotNil(t, p.ExpiresAt)
	assert.True(t, p.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestPayloadFromFlags_RequiresTitle(t *testing.T) {
	saved := sendOpts
	t.Cleanup(func() { sendOpts = saved })

	sendOpts.title = ""
	_, err := payloadFromFlags(&cobra.Command{}, time.Now())
	assert.Error(t, err)
}

func TestListFilter(t *testing.T) {
	saved := listOpts
	t.Cleanup(func() { listOpts = saved })

	listOpts.types = "reward,streak"
	listOpts.priority = "high"
	listOpts.since = "7d"
	listOpts.limit = 5

	opts, err := listFilter()
	require.NoError(t, err)
	assert.Equal(t, []model.Type{model.TypeReward, model.TypeStreak}, opts.Types)
	assert.Equal(t, model.PriorityHigh, opts.Priority)
	assert.Equal(t, 7*24*time.Hour, opts.Since)
	assert.Equal(t, 5, opts.Limit)

	listOpts.since = "soon"
	_, err = listFilter()
	assert.Error(t, err)
}
