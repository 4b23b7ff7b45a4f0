package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReplayDetected(t *testing.T) {
	identityID, recordID := uuid.New(), uuid.New()
	event := NewReplayDetected(identityID, recordID, "already_revoked")

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, ReplayDetected, event.Type)
	assert.Equal(t, identityID, event.IdentityID)
	assert.Equal(t, recordID, event.RecordID)
	assert.Equal(t, "already_revoked", event.Reason)
	assert.False(t, event.OccurredAt.IsZero())
}

func TestNewSessionsRevoked(t *testing.T) {
	identityID := uuid.New()
	event := NewSessionsRevoked(identityID, 4, "password_change")

	assert.Equal(t, SessionsRevoked, event.Type)
	assert.Equal(t, int64(4), event.Count)
	assert.Equal(t, uuid.Nil, event.RecordID)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"sessions_revoked"`)
	assert.Contains(t, string(data), `"count":4`)
}
