package mocks

import (
	"context"

	"github.com/phrazzld/taskhub-auth/internal/events"
	"github.com/stretchr/testify/mock"
)

// EventEmitter is a testify mock of events.EventEmitter.
type EventEmitter struct {
	mock.Mock
}

var _ events.EventEmitter = (*EventEmitter)(nil)

// EmitEvent is a mock implementation of events.EventEmitter.EmitEvent
func (m *EventEmitter) EmitEvent(ctx context.Context, event *events.SecurityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// EventOfType matches a *events.SecurityEvent argument by type.
func EventOfType(t events.EventType) any {
	return mock.MatchedBy(func(e *events.SecurityEvent) bool {
		return e != nil && e.Type == t
	})
}
