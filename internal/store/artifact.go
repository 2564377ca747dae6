package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/domain"
)

// ArtifactStore defines persistence for generated study material.
//
// Every write has replace semantics: regenerating a kind removes all
// prior instances of that kind for the topic before inserting the new
// ones, so no stale artifacts survive a regeneration. Notes and mindmap
// are singletons (upsert by topic); flashcards and MCQs are whole sets
// (delete-then-insert).
type ArtifactStore interface {
	// GetNotes retrieves the topic's notes artifact.
	// Returns ErrNotesNotFound if the topic has no notes.
	GetNotes(ctx context.Context, topicID uuid.UUID) (*domain.Notes, error)

	// ReplaceNotes installs notes as the topic's current notes artifact.
	ReplaceNotes(ctx context.Context, notes *domain.Notes) error

	// GetMindmap retrieves the topic's mindmap artifact.
	// Returns ErrMindmapNotFound if the topic has no mindmap.
	GetMindmap(ctx context.Context, topicID uuid.UUID) (*domain.Mindmap, error)

	// ReplaceMindmap installs mindmap as the topic's current mindmap artifact.
	ReplaceMindmap(ctx context.Context, mindmap *domain.Mindmap) error

	// GetFlashcards retrieves the topic's current flashcard set.
	GetFlashcards(ctx context.Context, topicID uuid.UUID) ([]*domain.Flashcard, error)

	// ReplaceFlashcards replaces the topic's entire flashcard set.
	ReplaceFlashcards(ctx context.Context, topicID uuid.UUID, cards []*domain.Flashcard) error

	// GetMCQs retrieves the topic's current question set.
	GetMCQs(ctx context.Context, topicID uuid.UUID) ([]*domain.MCQ, error)

	// ReplaceMCQs replaces the topic's entire question set.
	ReplaceMCQs(ctx context.Context, topicID uuid.UUID, mcqs []*domain.MCQ) error

	// WithTx returns a new store instance that uses the provided
	// transaction, so a caller can persist several kinds atomically.
	WithTx(tx *sql.Tx) ArtifactStore
}
