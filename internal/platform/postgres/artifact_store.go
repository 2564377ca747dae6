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

// PostgresArtifactStore implements the store.ArtifactStore interface
// using a PostgreSQL database as the storage backend.
//
// Notes and mindmaps carry a unique constraint on topic_id, so replace
// is an upsert. Flashcards and MCQs are replaced as whole sets with a
// delete followed by inserts; callers that need the replace to be atomic
// run it through WithTx.
type PostgresArtifactStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresArtifactStore creates a new PostgreSQL implementation of the
// ArtifactStore interface. If logger is nil, the default logger is used.
func NewPostgresArtifactStore(db store.DBTX, logger *slog.Logger) *PostgresArtifactStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresArtifactStore{
		db:     db,
		logger: logger.With(slog.String("component", "artifact_store")),
	}
}

var _ store.ArtifactStore = (*PostgresArtifactStore)(nil)

// GetNotes implements store.ArtifactStore.GetNotes
func (s *PostgresArtifactStore) GetNotes(ctx context.Context, topicID uuid.UUID) (*domain.Notes, error) {
	query := `
		SELECT id, topic_id, summary, detailed_content, analogies, diagram_description, created_at, updated_at
		FROM notes
		WHERE topic_id = $1
	`

	var notes domain.Notes
	var analogiesJSON []byte
	err := s.db.QueryRowContext(ctx, query, topicID).Scan(
		&notes.ID,
		&notes.TopicID,
		&notes.Summary,
		&notes.DetailedContent,
		&analogiesJSON,
		&notes.DiagramDescription,
		&notes.CreatedAt,
		&notes.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotesNotFound
		}
		return nil, MapError(err)
	}

	if err := json.Unmarshal(analogiesJSON, &notes.Analogies); err != nil {
		return nil, fmt.Errorf("failed to decode analogies: %w", err)
	}

	return &notes, nil
}

// ReplaceNotes implements store.ArtifactStore.ReplaceNotes
func (s *PostgresArtifactStore) ReplaceNotes(ctx context.Context, notes *domain.Notes) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	analogiesJSON, err := json.Marshal(notes.Analogies)
	if err != nil {
		return fmt.Errorf("failed to encode analogies: %w", err)
	}

	query := `
		INSERT INTO notes (id, topic_id, summary, detailed_content, analogies, diagram_description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (topic_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			detailed_content = EXCLUDED.detailed_content,
			analogies = EXCLUDED.analogies,
			diagram_description = EXCLUDED.diagram_description,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		notes.ID,
		notes.TopicID,
		notes.Summary,
		notes.DetailedContent,
		analogiesJSON,
		notes.DiagramDescription,
		notes.CreatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to replace notes",
			slog.String("topic_id", notes.TopicID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// GetMindmap implements store.ArtifactStore.GetMindmap
func (s *PostgresArtifactStore) GetMindmap(ctx context.Context, topicID uuid.UUID) (*domain.Mindmap, error) {
	query := `
		SELECT id, topic_id, central_idea, branches, created_at
		FROM mindmaps
		WHERE topic_id = $1
	`

	var mindmap domain.Mindmap
	var branchesJSON []byte
	err := s.db.QueryRowContext(ctx, query, topicID).Scan(
		&mindmap.ID,
		&mindmap.TopicID,
		&mindmap.CentralIdea,
		&branchesJSON,
		&mindmap.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMindmapNotFound
		}
		return nil, MapError(err)
	}

	if err := json.Unmarshal(branchesJSON, &mindmap.Branches); err != nil {
		return nil, fmt.Errorf("failed to decode branches: %w", err)
	}

	return &mindmap, nil
}

// ReplaceMindmap implements store.ArtifactStore.ReplaceMindmap
func (s *PostgresArtifactStore) ReplaceMindmap(ctx context.Context, mindmap *domain.Mindmap) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	branchesJSON, err := json.Marshal(mindmap.Branches)
	if err != nil {
		return fmt.Errorf("failed to encode branches: %w", err)
	}

	query := `
		INSERT INTO mindmaps (id, topic_id, central_idea, branches, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (topic_id) DO UPDATE SET
			central_idea = EXCLUDED.central_idea,
			branches = EXCLUDED.branches,
			created_at = EXCLUDED.created_at
	`

	_, err = s.db.ExecContext(ctx, query,
		mindmap.ID,
		mindmap.TopicID,
		mindmap.CentralIdea,
		branchesJSON,
		mindmap.CreatedAt,
	)
	if err != nil {
		log.Error("failed to replace mindmap",
			slog.String("topic_id", mindmap.TopicID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// GetFlashcards implements store.ArtifactStore.GetFlashcards
func (s *PostgresArtifactStore) GetFlashcards(ctx context.Context, topicID uuid.UUID) ([]*domain.Flashcard, error) {
	query := `
		SELECT id, topic_id, front_text, back_text, difficulty, created_at
		FROM flashcards
		WHERE topic_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, topicID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var cards []*domain.Flashcard
	for rows.Next() {
		var card domain.Flashcard
		if err := rows.Scan(
			&card.ID,
			&card.TopicID,
			&card.FrontText,
			&card.BackText,
			&card.Difficulty,
			&card.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan flashcard row: %w", err)
		}
		cards = append(cards, &card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flashcard rows: %w", err)
	}

	return cards, nil
}

// ReplaceFlashcards implements store.ArtifactStore.ReplaceFlashcards
func (s *PostgresArtifactStore) ReplaceFlashcards(ctx context.Context, topicID uuid.UUID, cards []*domain.Flashcard) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM flashcards WHERE topic_id = $1`, topicID); err != nil {
		log.Error("failed to clear flashcards",
			slog.String("topic_id", topicID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	query := `
		INSERT INTO flashcards (id, topic_id, front_text, back_text, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, card := range cards {
		if _, err := s.db.ExecContext(ctx, query,
			card.ID,
			topicID,
			card.FrontText,
			card.BackText,
			card.Difficulty,
			card.CreatedAt,
		); err != nil {
			log.Error("failed to insert flashcard",
				slog.String("topic_id", topicID.String()),
				slog.String("error", err.Error()))
			return MapError(err)
		}
	}

	log.Debug("flashcard set replaced",
		slog.String("topic_id", topicID.String()),
		slog.Int("count", len(cards)))
	return nil
}

// GetMCQs implements store.ArtifactStore.GetMCQs
func (s *PostgresArtifactStore) GetMCQs(ctx context.Context, topicID uuid.UUID) ([]*domain.MCQ, error) {
	query := `
		SELECT id, topic_id, question_text, option_a, option_b, option_c, option_d,
		       correct_option, explanation, difficulty, created_at
		FROM mcq_questions
		WHERE topic_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, topicID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var mcqs []*domain.MCQ
	for rows.Next() {
		var mcq domain.MCQ
		if err := rows.Scan(
			&mcq.ID,
			&mcq.TopicID,
			&mcq.QuestionText,
			&mcq.OptionA,
			&mcq.OptionB,
			&mcq.OptionC,
			&mcq.OptionD,
			&mcq.CorrectOption,
			&mcq.Explanation,
			&mcq.Difficulty,
			&mcq.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mcq row: %w", err)
		}
		mcqs = append(mcqs, &mcq)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mcq rows: %w", err)
	}

	return mcqs, nil
}

// ReplaceMCQs implements store.ArtifactStore.ReplaceMCQs
func (s *PostgresArtifactStore) ReplaceMCQs(ctx context.Context, topicID uuid.UUID, mcqs []*domain.MCQ) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM mcq_questions WHERE topic_id = $1`, topicID); err != nil {
		log.Error("failed to clear mcqs",
			slog.String("topic_id", topicID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	query := `
		INSERT INTO mcq_questions (id, topic_id, question_text, option_a, option_b, option_c, option_d,
		                           correct_option, explanation, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	for _, mcq := range mcqs {
		if _, err := s.db.ExecContext(ctx, query,
			mcq.ID,
			topicID,
			mcq.QuestionText,
			mcq.OptionA,
			mcq.OptionB,
			mcq.OptionC,
			mcq.OptionD,
			mcq.CorrectOption,
			mcq.Explanation,
			mcq.Difficulty,
			mcq.CreatedAt,
		); err != nil {
			log.Error("failed to insert mcq",
				slog.String("topic_id", topicID.String()),
				slog.String("error", err.Error()))
			return MapError(err)
		}
	}

	log.Debug("mcq set replaced",
		slog.String("topic_id", topicID.String()),
		slog.Int("count", len(mcqs)))
	return nil
}

// WithTx implements store.ArtifactStore.WithTx
func (s *PostgresArtifactStore) WithTx(tx *sql.Tx) store.ArtifactStore {
	return &PostgresArtifactStore{db: tx, logger: s.logger}
}
