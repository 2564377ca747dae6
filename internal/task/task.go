// Package task contains the generation pipeline's execution machinery:
// the orchestrator that runs one generation task end to end, the worker
// pool for deferred execution, and the executor strategies that pick
// between running inline and queueing.
package task

import (
	"context"

	"github.com/google/uuid"
)

// Task represents a unit of work that can be executed by the runner.
type Task interface {
	// ID returns the task's unique identifier.
	ID() uuid.UUID

	// Execute performs the task's work. The task record's status
	// transitions are handled inside Execute, so a returned error is for
	// the caller's logging only, never a signal to retry.
	Execute(ctx context.Context) error
}
