package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a generation task.
type TaskStatus string

// Possible task status values. Pending and processing are the active
// states; completed and failed are terminal and never resumed from.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Common validation errors for GenerationTask
var (
	ErrEmptyTaskUserID  = errors.New("task user ID cannot be empty")
	ErrEmptyTaskTopicID = errors.New("task topic ID cannot be empty")
)

// TaskResult summarizes what a completed generation task produced.
// It is stored as JSON alongside the task record.
type TaskResult struct {
	NotesGenerated   bool `json:"notes_generated"`
	MindmapGenerated bool `json:"mindmap_generated"`
	FlashcardCount   int  `json:"flashcard_count"`
	MCQCount         int  `json:"mcq_count"`
}

// GenerationTask tracks one generation request for a (user, topic, kind)
// triple. At most one task row exists per triple: a new request for the
// same triple resets the existing record back to pending instead of
// creating a duplicate, so status polling stays unambiguous.
type GenerationTask struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	TopicID      uuid.UUID    `json:"topic_id"`
	Kind         ArtifactKind `json:"kind"`
	Status       TaskStatus   `json:"status"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Result       *TaskResult  `json:"result,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// NewGenerationTask creates a pending task for the given triple.
// Returns an error if validation fails.
func NewGenerationTask(userID, topicID uuid.UUID, kind ArtifactKind) (*GenerationTask, error) {
	task := &GenerationTask{
		ID:        uuid.New(),
		UserID:    userID,
		TopicID:   topicID,
		Kind:      kind,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the GenerationTask has valid data.
func (t *GenerationTask) Validate() error {
	if t.UserID == uuid.Nil {
		return ErrEmptyTaskUserID
	}

	if t.TopicID == uuid.Nil {
		return ErrEmptyTaskTopicID
	}

	if _, err := ParseArtifactKind(string(t.Kind)); err != nil {
		return err
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	return nil
}

// Active reports whether the task is still pending or processing.
func (t *GenerationTask) Active() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusProcessing
}

// Terminal reports whether the task reached a final state.
func (t *GenerationTask) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
