package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a kind of security event.
type EventType string

const (
	// ReplayDetected is emitted when a refresh token that was already consumed
	// or revoked is presented again.
	ReplayDetected EventType = "replay_detected"

	// SessionsRevoked is emitted when every session of an identity is revoked.
	SessionsRevoked EventType = "sessions_revoked"
)

// SecurityEvent describes something a security operator may want to know about.
type SecurityEvent struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	IdentityID uuid.UUID `json:"identity_id"`

	// RecordID is the refresh record involved, if any.
	RecordID uuid.UUID `json:"record_id,omitempty"`

	// Reason is a short machine-readable cause, e.g. "password_change".
	Reason string `json:"reason,omitempty"`

	// Count is the number of sessions affected, for SessionsRevoked.
	Count int64 `json:"count,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewReplayDetected builds a ReplayDetected event for a refresh record.
func NewReplayDetected(identityID, recordID uuid.UUID, reason string) *SecurityEvent {
	return &SecurityEvent{
		ID:         uuid.New(),
		Type:       ReplayDetected,
		IdentityID: identityID,
		RecordID:   recordID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// NewSessionsRevoked builds a SessionsRevoked event.
func NewSessionsRevoked(identityID uuid.UUID, count int64, reason string) *SecurityEvent {
	return &SecurityEvent{
		ID:         uuid.New(),
		Type:       SessionsRevoked,
		IdentityID: identityID,
		Reason:     reason,
		Count:      count,
		OccurredAt: time.Now().UTC(),
	}
}

// EventHandler processes emitted events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *SecurityEvent) error
}

// EventEmitter publishes events to registered handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *SecurityEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *SecurityEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *SecurityEvent) error {
	return f(ctx, event)
}
