package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Topic
var (
	ErrEmptyTopicID   = errors.New("topic ID cannot be empty")
	ErrEmptyTopicName = errors.New("topic name cannot be empty")
)

// Topic is the unit of study material the generation pipeline operates on.
// The wider subject/unit hierarchy lives outside this service; the pipeline
// only needs the topic's name and the name of the subject it belongs to,
// which is denormalized here for prompt construction.
type Topic struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	SubjectName string    `json:"subject_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTopic creates a new Topic with the given name and subject name.
// Returns an error if validation fails.
func NewTopic(name, subjectName string) (*Topic, error) {
	topic := &Topic{
		ID:          uuid.New(),
		Name:        name,
		SubjectName: subjectName,
		CreatedAt:   time.Now().UTC(),
	}

	if err := topic.Validate(); err != nil {
		return nil, err
	}

	return topic, nil
}

// Validate checks if the Topic has valid data.
func (t *Topic) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTopicID
	}

	if t.Name == "" {
		return ErrEmptyTopicName
	}

	return nil
}
