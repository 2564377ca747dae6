package task

import (
	"context"
)

// ExecutionMode selects how a generation request is executed.
type ExecutionMode string

// Possible execution modes. Inline blocks the caller until the task is
// terminal; deferred hands the task to the worker pool and returns the
// pending record for polling.
const (
	ModeInline   ExecutionMode = "inline"
	ModeDeferred ExecutionMode = "deferred"
)

// ParseExecutionMode validates a raw mode string. An empty string
// defaults to deferred.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(s) {
	case ModeInline:
		return ModeInline, nil
	case ModeDeferred, "":
		return ModeDeferred, nil
	default:
		return "", ErrInvalidExecutionMode
	}
}

// Executor is the strategy for getting a Task executed. Both strategies
// drive the same Orchestrator.Run, so a task reaches the same terminal
// state whichever one dispatched it.
type Executor interface {
	// Dispatch hands the task off for execution. For an inline executor
	// the task is terminal when Dispatch returns; for a queued executor
	// it has merely been accepted.
	Dispatch(ctx context.Context, t Task) error
}

// InlineExecutor runs the task on the caller's goroutine.
type InlineExecutor struct{}

var _ Executor = InlineExecutor{}

// Dispatch implements Executor.Dispatch
func (InlineExecutor) Dispatch(ctx context.Context, t Task) error {
	return t.Execute(ctx)
}

// QueuedExecutor submits the task to the runner's worker pool.
type QueuedExecutor struct {
	runner *Runner
}

var _ Executor = (*QueuedExecutor)(nil)

// NewQueuedExecutor creates an executor backed by the given runner.
func NewQueuedExecutor(runner *Runner) *QueuedExecutor {
	if runner == nil {
		panic("runner cannot be nil")
	}
	return &QueuedExecutor{runner: runner}
}

// Dispatch implements Executor.Dispatch
func (e *QueuedExecutor) Dispatch(_ context.Context, t Task) error {
	return e.runner.Submit(t)
}
