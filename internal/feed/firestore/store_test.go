package firestore

import (
	"testing"
	"time"

	fstore "cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/nudge/internal/model"
)

func TestPayloadFields(t *testing.T) {
	expires := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	p := model.Payload{
		Type:      model.TypeChallenge,
		Title:     "Weekly challenge",
		Message:   "Finish 3 lessons",
		Action:    &model.Action{Kind: model.ActionNavigate, Destination: "/challenges"},
		ExpiresAt: &expires,
	}

	fields := payloadFields("u1", p)

	assert.Equal(t, "u1", fields["userId"])
	assert.Equal(t, "challenge", fields["type"])
	assert.Equal(t, "medium", fields["priority"])
	assert.Equal(t, false, fields["read"])
	assert.Equal(t, false, fields["dismissed"])
	assert.Equal(t, fstore.ServerTimestamp, fields["createdAt"])
	assert.Equal(t, p.Action, fields["action"])
	assert.Equal(t, expires, fields["expiresAt"])
	assert.NotContains(t, fields, "reward")
	assert.NotContains(t, fields, "id")
}

func TestPayloadFields_KeepsPriority(t *testing.T) {
	fields := payloadFields("u1", model.Payload{Title: "x", Priority: model.PriorityHigh})
	assert.Equal(t, "high", fields["priority"])
}

func TestCollectionOr(t *testing.T) {
	assert.Equal(t, DefaultCollection, collectionOr("", DefaultCollection))
	assert.Equal(t, "events", collectionOr("events", DefaultCollection))
}
