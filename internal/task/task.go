package task

import "context"

// Task type constants
const (
	// TaskTypeRefreshSweep deletes refresh records whose expiry has passed.
	TaskTypeRefreshSweep = "refresh_sweep"
)

// Task represents a unit of background work that a Runner executes on an interval.
type Task interface {
	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic once
	Execute(ctx context.Context) error
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Type implements Task.
func (f TaskFunc) Type() string { return f.Name }

// Execute implements Task.
func (f TaskFunc) Execute(ctx context.Context) error { return f.Fn(ctx) }
