package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
	"github.com/studyhall/studyhall-api/internal/store"
)

// PostgresGenerationTaskStore implements the store.GenerationTaskStore
// interface using a PostgreSQL database as the storage backend.
type PostgresGenerationTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGenerationTaskStore creates a new PostgreSQL implementation
// of the GenerationTaskStore interface. If logger is nil, the default
// logger is used.
func NewPostgresGenerationTaskStore(db store.DBTX, logger *slog.Logger) *PostgresGenerationTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresGenerationTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "generation_task_store")),
	}
}

var _ store.GenerationTaskStore = (*PostgresGenerationTaskStore)(nil)

const taskColumns = `id, user_id, topic_id, kind, status, error_message, result, created_at, started_at, completed_at`

// UpsertForTriple implements store.GenerationTaskStore.UpsertForTriple.
//
// The unique index on (user_id, topic_id, kind) makes this a single
// atomic statement: either a fresh pending row is inserted, a terminal
// row is reset back to pending, or, when the conflicting row is still
// active, the guarded DO UPDATE matches nothing and the existing row is
// returned unchanged.
func (s *PostgresGenerationTaskStore) UpsertForTriple(ctx context.Context, task *domain.GenerationTask) (*domain.GenerationTask, bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO generation_tasks (id, user_id, topic_id, kind, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		ON CONFLICT (user_id, topic_id, kind) DO UPDATE SET
			status = 'pending',
			error_message = NULL,
			result = NULL,
			created_at = EXCLUDED.created_at,
			started_at = NULL,
			completed_at = NULL
		WHERE generation_tasks.status IN ('completed', 'failed')
		RETURNING id, created_at
	`

	var id uuid.UUID
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.TopicID,
		task.Kind,
		task.CreatedAt,
	).Scan(&id, &createdAt)

	if err == nil {
		fresh := *task
		fresh.ID = id
		fresh.Status = domain.TaskStatusPending
		fresh.CreatedAt = createdAt
		fresh.ErrorMessage = ""
		fresh.Result = nil
		fresh.StartedAt = nil
		fresh.CompletedAt = nil
		return &fresh, true, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to upsert generation task",
			slog.String("user_id", task.UserID.String()),
			slog.String("topic_id", task.TopicID.String()),
			slog.String("kind", string(task.Kind)),
			slog.String("error", err.Error()))
		return nil, false, MapError(err)
	}

	// The triple already has an active task; hand it back so the caller
	// reuses it instead of dispatching duplicate work.
	existing, err := s.GetByTriple(ctx, task.UserID, task.TopicID, task.Kind)
	if err != nil {
		return nil, false, err
	}

	return existing, false, nil
}

// GetByTriple implements store.GenerationTaskStore.GetByTriple
func (s *PostgresGenerationTaskStore) GetByTriple(ctx context.Context, userID, topicID uuid.UUID, kind domain.ArtifactKind) (*domain.GenerationTask, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM generation_tasks
		WHERE user_id = $1 AND topic_id = $2 AND kind = $3
	`, taskColumns)

	return s.scanTask(s.db.QueryRowContext(ctx, query, userID, topicID, kind))
}

// GetByID implements store.GenerationTaskStore.GetByID
func (s *PostgresGenerationTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM generation_tasks
		WHERE id = $1
	`, taskColumns)

	return s.scanTask(s.db.QueryRowContext(ctx, query, id))
}

// MarkProcessing implements store.GenerationTaskStore.MarkProcessing
func (s *PostgresGenerationTaskStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE generation_tasks
		SET status = 'processing', started_at = $2
		WHERE id = $1
	`

	return s.exec(ctx, id, query, id, time.Now().UTC())
}

// MarkCompleted implements store.GenerationTaskStore.MarkCompleted
func (s *PostgresGenerationTaskStore) MarkCompleted(ctx context.Context, id uuid.UUID, result *domain.TaskResult) error {
	var resultJSON []byte
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode task result: %w", err)
		}
	}

	query := `
		UPDATE generation_tasks
		SET status = 'completed', result = $2, error_message = NULL, completed_at = $3
		WHERE id = $1
	`

	return s.exec(ctx, id, query, id, resultJSON, time.Now().UTC())
}

// MarkFailed implements store.GenerationTaskStore.MarkFailed
func (s *PostgresGenerationTaskStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE generation_tasks
		SET status = 'failed', error_message = $2, completed_at = $3
		WHERE id = $1
	`

	return s.exec(ctx, id, query, id, errorMessage, time.Now().UTC())
}

// FailActiveTasks implements store.GenerationTaskStore.FailActiveTasks
func (s *PostgresGenerationTaskStore) FailActiveTasks(ctx context.Context, reason string) (int64, error) {
	query := `
		UPDATE generation_tasks
		SET status = 'failed', error_message = $1, completed_at = $2
		WHERE status IN ('pending', 'processing')
	`

	result, err := s.db.ExecContext(ctx, query, reason, time.Now().UTC())
	if err != nil {
		return 0, MapError(err)
	}

	return result.RowsAffected()
}

// FailStuckTasks implements store.GenerationTaskStore.FailStuckTasks
func (s *PostgresGenerationTaskStore) FailStuckTasks(ctx context.Context, olderThan time.Duration, reason string) (int64, error) {
	query := `
		UPDATE generation_tasks
		SET status = 'failed', error_message = $1, completed_at = $2
		WHERE status = 'processing' AND started_at < $3
	`

	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.ExecContext(ctx, query, reason, time.Now().UTC(), cutoff)
	if err != nil {
		return 0, MapError(err)
	}

	return result.RowsAffected()
}

// WithTx implements store.GenerationTaskStore.WithTx
func (s *PostgresGenerationTaskStore) WithTx(tx *sql.Tx) store.GenerationTaskStore {
	return &PostgresGenerationTaskStore{db: tx, logger: s.logger}
}

func (s *PostgresGenerationTaskStore) exec(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update generation task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrTaskNotFound
	}

	return nil
}

func (s *PostgresGenerationTaskStore) scanTask(row *sql.Row) (*domain.GenerationTask, error) {
	var task domain.GenerationTask
	var errorMessage sql.NullString
	var resultJSON []byte
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.TopicID,
		&task.Kind,
		&task.Status,
		&errorMessage,
		&resultJSON,
		&task.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	task.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		task.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	if len(resultJSON) > 0 {
		var result domain.TaskResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to decode task result: %w", err)
		}
		task.Result = &result
	}

	return &task, nil
}
