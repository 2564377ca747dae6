package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/generation"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
	"github.com/studyhall/studyhall-api/internal/store"
)

// UsageRecorder folds a request's metering record into the user's
// profile. Implemented by the quota governor.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, userID uuid.UUID, usage generation.TokenUsage, usedShared bool) error
}

// Orchestrator runs one generation task from pending to a terminal
// state. It owns every status transition, so inline and queued execution
// produce identical end states: processing, then generate, then persist
// with replace semantics, then completed with result counts or failed
// with a message. Usage is folded into the profile only after a
// successful run; a failed run leaves the profile untouched.
type Orchestrator struct {
	topics    store.TopicStore
	artifacts store.ArtifactStore
	tasks     store.GenerationTaskStore
	generator generation.ContentGenerator
	usage     UsageRecorder
	logger    *slog.Logger

	runTx func(ctx context.Context, fn store.TxFn) error
}

// NewOrchestrator creates an Orchestrator over the given stores and
// generator. db carries the transactions used for artifact persistence.
func NewOrchestrator(
	db *sql.DB,
	topics store.TopicStore,
	artifacts store.ArtifactStore,
	tasks store.GenerationTaskStore,
	generator generation.ContentGenerator,
	usage UsageRecorder,
	log *slog.Logger,
) *Orchestrator {
	if db == nil {
		panic("db cannot be nil")
	}
	if topics == nil || artifacts == nil || tasks == nil {
		panic("stores cannot be nil")
	}
	if generator == nil {
		panic("generator cannot be nil")
	}
	if usage == nil {
		panic("usage recorder cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Orchestrator{
		topics:    topics,
		artifacts: artifacts,
		tasks:     tasks,
		generator: generator,
		usage:     usage,
		logger:    log.With(slog.String("component", "task_orchestrator")),
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
	}
}

// Run executes one generation task to a terminal state. The returned
// error mirrors a failed task's message; the task record itself is
// already marked by the time Run returns.
func (o *Orchestrator) Run(ctx context.Context, t *domain.GenerationTask, cred generation.Credential) error {
	log := logger.FromContextOrDefault(ctx, o.logger).With(
		slog.String("task_id", t.ID.String()),
		slog.String("topic_id", t.TopicID.String()),
		slog.String("kind", string(t.Kind)))
	ctx = logger.WithLogger(ctx, log)

	if err := o.tasks.MarkProcessing(ctx, t.ID); err != nil {
		return o.fail(ctx, t, fmt.Errorf("failed to mark task processing: %w", err))
	}

	topic, err := o.topics.GetByID(ctx, t.TopicID)
	if err != nil {
		return o.fail(ctx, t, fmt.Errorf("failed to load topic: %w", err))
	}

	var result *domain.TaskResult
	var usage generation.TokenUsage
	if t.Kind == domain.KindAll {
		result, usage, err = o.runAll(ctx, topic, cred)
	} else {
		result, usage, err = o.runSingle(ctx, topic, t.Kind, cred)
	}
	if err != nil {
		return o.fail(ctx, t, err)
	}

	o.recordUsage(ctx, t.UserID, usage, cred)

	if err := o.tasks.MarkCompleted(ctx, t.ID, result); err != nil {
		return fmt.Errorf("failed to mark task completed: %w", err)
	}

	log.Info("generation task completed",
		slog.Int64("input_tokens", usage.InputTokens),
		slog.Int64("output_tokens", usage.OutputTokens))
	return nil
}

// runFailures aggregates per-kind generation failures into one task
// error message while keeping the underlying errors matchable with
// errors.Is, so a provider rate limit inside a combined run still maps
// to the right status at the transport layer.
type runFailures struct {
	errs []error
}

func (e *runFailures) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *runFailures) Unwrap() []error { return e.errs }

// runAll generates every artifact kind and persists them in a single
// transaction. Any generation failure leaves the database untouched;
// every kind is still attempted so the failure message names them all.
func (o *Orchestrator) runAll(ctx context.Context, topic *domain.Topic, cred generation.Credential) (*domain.TaskResult, generation.TokenUsage, error) {
	var usage generation.TokenUsage
	var failures []error

	notes, u, err := o.generator.GenerateNotes(ctx, topic, cred)
	usage = usage.Add(u)
	if err != nil {
		failures = append(failures, fmt.Errorf("notes: %w", err))
	}

	mindmap, u, err := o.generator.GenerateMindmap(ctx, topic, cred)
	usage = usage.Add(u)
	if err != nil {
		failures = append(failures, fmt.Errorf("mindmap: %w", err))
	}

	// Fresh notes ground the dependent kinds; when notes failed the
	// calls run without context rather than not at all.
	notesContext := notes.Context()

	cards, u, err := o.generator.GenerateFlashcards(ctx, topic, notesContext, cred)
	usage = usage.Add(u)
	if err != nil {
		failures = append(failures, fmt.Errorf("flashcards: %w", err))
	}

	mcqs, u, err := o.generator.GenerateMCQs(ctx, topic, notesContext, cred)
	usage = usage.Add(u)
	if err != nil {
		failures = append(failures, fmt.Errorf("mcqs: %w", err))
	}

	if len(failures) > 0 {
		return nil, usage, &runFailures{errs: failures}
	}

	err = o.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		artifacts := o.artifacts.WithTx(tx)

		if err := artifacts.ReplaceNotes(ctx, notes); err != nil {
			return fmt.Errorf("failed to persist notes: %w", err)
		}
		if err := artifacts.ReplaceMindmap(ctx, mindmap); err != nil {
			return fmt.Errorf("failed to persist mindmap: %w", err)
		}
		if err := artifacts.ReplaceFlashcards(ctx, topic.ID, cards); err != nil {
			return fmt.Errorf("failed to persist flashcards: %w", err)
		}
		if err := artifacts.ReplaceMCQs(ctx, topic.ID, mcqs); err != nil {
			return fmt.Errorf("failed to persist mcqs: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, usage, err
	}

	return &domain.TaskResult{
		NotesGenerated:   true,
		MindmapGenerated: true,
		FlashcardCount:   len(cards),
		MCQCount:         len(mcqs),
	}, usage, nil
}

// runSingle generates and persists one artifact kind, independently of
// any other kind's state. Set replaces (flashcards, mcqs) are a delete
// plus per-row inserts, so they run inside a transaction to keep the
// old set intact when an insert fails.
func (o *Orchestrator) runSingle(ctx context.Context, topic *domain.Topic, kind domain.ArtifactKind, cred generation.Credential) (*domain.TaskResult, generation.TokenUsage, error) {
	switch kind {
	case domain.KindNotes:
		notes, usage, err := o.generator.GenerateNotes(ctx, topic, cred)
		if err != nil {
			return nil, usage, err
		}
		if err := o.artifacts.ReplaceNotes(ctx, notes); err != nil {
			return nil, usage, fmt.Errorf("failed to persist notes: %w", err)
		}
		return &domain.TaskResult{NotesGenerated: true}, usage, nil

	case domain.KindMindmap:
		mindmap, usage, err := o.generator.GenerateMindmap(ctx, topic, cred)
		if err != nil {
			return nil, usage, err
		}
		if err := o.artifacts.ReplaceMindmap(ctx, mindmap); err != nil {
			return nil, usage, fmt.Errorf("failed to persist mindmap: %w", err)
		}
		return &domain.TaskResult{MindmapGenerated: true}, usage, nil

	case domain.KindFlashcards:
		cards, usage, err := o.generator.GenerateFlashcards(ctx, topic, o.storedNotesContext(ctx, topic.ID), cred)
		if err != nil {
			return nil, usage, err
		}
		err = o.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return o.artifacts.WithTx(tx).ReplaceFlashcards(ctx, topic.ID, cards)
		})
		if err != nil {
			return nil, usage, fmt.Errorf("failed to persist flashcards: %w", err)
		}
		return &domain.TaskResult{FlashcardCount: len(cards)}, usage, nil

	case domain.KindMCQs:
		mcqs, usage, err := o.generator.GenerateMCQs(ctx, topic, o.storedNotesContext(ctx, topic.ID), cred)
		if err != nil {
			return nil, usage, err
		}
		err = o.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return o.artifacts.WithTx(tx).ReplaceMCQs(ctx, topic.ID, mcqs)
		})
		if err != nil {
			return nil, usage, fmt.Errorf("failed to persist mcqs: %w", err)
		}
		return &domain.TaskResult{MCQCount: len(mcqs)}, usage, nil

	default:
		return nil, generation.TokenUsage{}, domain.ErrInvalidArtifactKind
	}
}

// storedNotesContext loads previously generated notes text to ground a
// dependent generation call. Missing notes yield an empty context.
func (o *Orchestrator) storedNotesContext(ctx context.Context, topicID uuid.UUID) string {
	notes, err := o.artifacts.GetNotes(ctx, topicID)
	if err != nil {
		if !errors.Is(err, store.ErrNotesNotFound) {
			logger.FromContextOrDefault(ctx, o.logger).Warn("failed to load notes context",
				slog.String("topic_id", topicID.String()),
				slog.String("error", err.Error()))
		}
		return ""
	}
	return notes.Context()
}

// fail marks the task failed and surfaces the cause as the returned
// error. No usage is metered for a failed run.
func (o *Orchestrator) fail(ctx context.Context, t *domain.GenerationTask, cause error) error {
	logger.FromContextOrDefault(ctx, o.logger).Warn("generation task failed",
		slog.String("task_id", t.ID.String()),
		slog.String("error", cause.Error()))

	if err := o.tasks.MarkFailed(ctx, t.ID, cause.Error()); err != nil {
		return fmt.Errorf("failed to mark task failed (cause: %v): %w", cause, err)
	}

	return cause
}

// recordUsage is best effort: a metering failure is logged but never
// changes the task's outcome.
func (o *Orchestrator) recordUsage(ctx context.Context, userID uuid.UUID, usage generation.TokenUsage, cred generation.Credential) {
	if err := o.usage.RecordUsage(ctx, userID, usage, !cred.Personal); err != nil {
		logger.FromContextOrDefault(ctx, o.logger).Error("failed to record usage",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}
}
