package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/domain"
)

// GenerationTaskStore defines persistence for generation task records.
//
// The table holds at most one row per (user, topic, kind) triple,
// enforced by a unique index. UpsertForTriple is the only way to create
// a task, and it is atomic: concurrent requests for the same triple can
// never produce two live rows.
type GenerationTaskStore interface {
	// UpsertForTriple inserts a pending task for the triple, or resets
	// the existing row back to pending if it is in a terminal state. If
	// the existing row is still active (pending/processing) it is
	// returned unchanged with started=false so the caller reuses it
	// instead of dispatching duplicate work.
	UpsertForTriple(ctx context.Context, task *domain.GenerationTask) (*domain.GenerationTask, bool, error)

	// GetByTriple retrieves the task record for a triple.
	// Returns ErrTaskNotFound if no task exists.
	GetByTriple(ctx context.Context, userID, topicID uuid.UUID, kind domain.ArtifactKind) (*domain.GenerationTask, error)

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if no task exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error)

	// MarkProcessing transitions a task to processing and stamps started_at.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// MarkCompleted transitions a task to completed with its result summary.
	MarkCompleted(ctx context.Context, id uuid.UUID, result *domain.TaskResult) error

	// MarkFailed transitions a task to failed with an error message.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error

	// FailActiveTasks marks every pending/processing task failed with the
	// given reason. Used at startup: work interrupted by a restart is not
	// retried automatically, so its tasks must not sit active forever.
	FailActiveTasks(ctx context.Context, reason string) (int64, error)

	// FailStuckTasks marks tasks failed that have been processing longer
	// than olderThan. Returns the number of tasks swept.
	FailStuckTasks(ctx context.Context, olderThan time.Duration, reason string) (int64, error)

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) GenerationTaskStore
}
