package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/domain"
)

// TopicStore defines persistence for topics. The pipeline only reads
// topics; Create exists for seeding and tests. The wider subject/unit
// CRUD lives outside this service.
type TopicStore interface {
	// GetByID retrieves a topic by its unique ID.
	// Returns ErrTopicNotFound if the topic does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error)

	// Create saves a new topic.
	Create(ctx context.Context, topic *domain.Topic) error

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TopicStore
}
