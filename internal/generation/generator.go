// Package generation defines the boundary between the application core
// and the external generative-text provider, following the hexagonal
// architecture pattern. The concrete provider implementation lives in
// internal/platform/gemini.
package generation

import (
	"context"

	"github.com/studyhall/studyhall-api/internal/domain"
)

// Credential authorizes calls to the generative-text provider. It is
// threaded explicitly through every call so concurrent requests can use
// different keys without any process-wide mutable client state.
type Credential struct {
	// Key is the decrypted API key to use for the call.
	Key string

	// Personal is true when the key was supplied by the user rather than
	// drawn from the shared system credential. Personal calls are never
	// counted against the daily quota.
	Personal bool
}

// TokenUsage is the metering record the provider reports for one call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add returns the element-wise sum of two metering records.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// ContentGenerator is the interface the pipeline uses to produce study
// material. Implementations never panic: every provider failure is
// returned as an error, with quota/rate-limit failures wrapped in
// ErrQuotaExceeded. Implementations do not persist anything; persistence
// is the orchestrator's job.
type ContentGenerator interface {
	// GenerateNotes produces the notes artifact for a topic.
	GenerateNotes(ctx context.Context, topic *domain.Topic, cred Credential) (*domain.Notes, TokenUsage, error)

	// GenerateMindmap produces the mindmap artifact for a topic.
	GenerateMindmap(ctx context.Context, topic *domain.Topic, cred Credential) (*domain.Mindmap, TokenUsage, error)

	// GenerateFlashcards produces a flashcard set for a topic.
	// notesContext may be empty; when present it grounds the cards in
	// previously generated notes.
	GenerateFlashcards(ctx context.Context, topic *domain.Topic, notesContext string, cred Credential) ([]*domain.Flashcard, TokenUsage, error)

	// GenerateMCQs produces a multiple-choice question set for a topic.
	GenerateMCQs(ctx context.Context, topic *domain.Topic, notesContext string, cred Credential) ([]*domain.MCQ, TokenUsage, error)

	// TagQuestionTopic picks the single best-matching topic name for a
	// question from the provided candidates.
	TagQuestionTopic(ctx context.Context, questionText string, candidates []string, cred Credential) (string, TokenUsage, error)

	// AnswerDoubt answers a student question about a topic, using the
	// supplied notes text as context when available.
	AnswerDoubt(ctx context.Context, question, topicName, notesContext string, cred Credential) (string, TokenUsage, error)
}
