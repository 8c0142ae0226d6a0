package input

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/nudge/internal/model"
)

func TestReadPayloads_JSONObject(t *testing.T) {
	in := `{"type":"reward","title":"Bonus","message":"You earned it","reward":{"kind":"xp","amount":50},"action":{"kind":"claim"}}`

	ps, err := ReadPayloads("stdin", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, ps, 1)

	p := ps[0]
	assert.Equal(t, model.TypeReward, p.Type)
	assert.Equal(t, "Bonus", p.Title)
	require.NotNil(t, p.Reward)
	assert.Equal(t, model.RewardXP, p.Reward.Kind)
	require.NotNil(t, p.Reward.Amount)
	assert.Equal(t, 50.0, *p.Reward.Amount)
	assert.Equal(t, model.ActionClaim, p.Action.Kind)
}

func TestReadPayloads_JSONArray(t *testing.T) {
	in := `[
  {"type":"streak","title":"3 day streak"},
  {"type":"tip","title":"   "},
  {"type":"challenge","title":"Weekly","expiresAt":"2026-03-01T00:00:00Z"}
]`

	ps, err := ReadPayloads("stdin", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, ps, 2, "blank titles are skipped")

	assert.Equal(t, "3 day streak", ps[0].Title)
	require.NotNil(t, ps[1].ExpiresAt)
	assert.True(t, ps[1].ExpiresAt.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestReadPayloads_YAML(t *testing.T) {
	in := `
- type: referral
  title: Invite a friend
  action:
    kind: invite
- type: suggestion
  title: Try the planner
  action:
    kind: try_tool
    toolId: planner
`
	ps, err := ReadPayloads("file", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, model.ActionInvite, ps[0].Action.Kind)
	assert.Equal(t, "planner", ps[1].Action.ToolID)
}

func TestReadPayloads_Empty(t *testing.T) {
	ps, err := ReadPayloads("stdin", strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestReadPayloads_Invalid(t *testing.T) {
	_, err := ReadPayloads("stdin", strings.NewReader(`{"title": [unterminated`))
	require.Error(t, err)

	var ae *AdapterError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "stdin", ae.Source)
	assert.NotNil(t, ae.Unwrap())
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello\tworld\nagain", sanitizeString(" hello\tworld\nagain\x07 "))
	assert.Equal(t, "", sanitizeString("\x00\x1b"))
}
