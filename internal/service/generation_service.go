// Package service contains the application services that sit between the
// HTTP handlers and the stores, generator and task machinery.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/generation"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
	"github.com/studyhall/studyhall-api/internal/platform/vault"
	"github.com/studyhall/studyhall-api/internal/store"
	"github.com/studyhall/studyhall-api/internal/task"
)

// Swapped out in tests.
var timeNow = time.Now

// QuotaGovernor is the admission and metering surface the service needs
// from the quota package.
type QuotaGovernor interface {
	Admit(ctx context.Context, userID uuid.UUID) (generation.Credential, error)
	RecordUsage(ctx context.Context, userID uuid.UUID, usage generation.TokenUsage, usedShared bool) error
	Remaining(ctx context.Context, userID uuid.UUID) (int, error)
}

// UsageSummary is the derived usage report for one user. Cost is
// computed from the token ledger on every read, never stored.
type UsageSummary struct {
	DailyCount            int     `json:"daily_count"`
	DailyLimit            int     `json:"daily_limit"`
	Remaining             int     `json:"remaining"`
	TotalInputTokens      int64   `json:"total_input_tokens"`
	TotalOutputTokens     int64   `json:"total_output_tokens"`
	TotalTokens           int64   `json:"total_tokens"`
	EstimatedCost         float64 `json:"estimated_cost"`
	HasPersonalCredential bool    `json:"has_personal_credential"`
}

// GenerationService coordinates the content-generation pipeline: topic
// lookup, quota admission, task identity, and dispatch to the chosen
// execution strategy. It also fronts the one-shot generator operations
// (doubt answering, question tagging) that produce no stored artifacts.
type GenerationService struct {
	topics       store.TopicStore
	artifacts    store.ArtifactStore
	tasks        store.GenerationTaskStore
	profiles     store.UsageProfileStore
	generator    generation.ContentGenerator
	governor     QuotaGovernor
	orchestrator *task.Orchestrator
	inline       task.Executor
	queued       task.Executor
	vault        *vault.Vault
	pricing      domain.TokenPricing
	dailyLimit   int
	logger       *slog.Logger
}

// GenerationServiceParams bundles the service's many collaborators.
type GenerationServiceParams struct {
	Topics       store.TopicStore
	Artifacts    store.ArtifactStore
	Tasks        store.GenerationTaskStore
	Profiles     store.UsageProfileStore
	Generator    generation.ContentGenerator
	Governor     QuotaGovernor
	Orchestrator *task.Orchestrator
	Inline       task.Executor
	Queued       task.Executor
	Vault        *vault.Vault
	Pricing      domain.TokenPricing
	DailyLimit   int
	Logger       *slog.Logger
}

// NewGenerationService creates a GenerationService from its collaborators.
func NewGenerationService(p GenerationServiceParams) *GenerationService {
	if p.Topics == nil || p.Artifacts == nil || p.Tasks == nil || p.Profiles == nil {
		panic("stores cannot be nil")
	}
	if p.Generator == nil {
		panic("generator cannot be nil")
	}
	if p.Governor == nil {
		panic("governor cannot be nil")
	}
	if p.Orchestrator == nil {
		panic("orchestrator cannot be nil")
	}
	if p.Inline == nil || p.Queued == nil {
		panic("executors cannot be nil")
	}
	if p.Vault == nil {
		panic("vault cannot be nil")
	}

	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	return &GenerationService{
		topics:       p.Topics,
		artifacts:    p.Artifacts,
		tasks:        p.Tasks,
		profiles:     p.Profiles,
		generator:    p.Generator,
		governor:     p.Governor,
		orchestrator: p.Orchestrator,
		inline:       p.Inline,
		queued:       p.Queued,
		vault:        p.Vault,
		pricing:      p.Pricing,
		dailyLimit:   p.DailyLimit,
		logger:       log.With(slog.String("component", "generation_service")),
	}
}

// RequestGeneration admits, records and dispatches one generation
// request. An inline request returns the terminal task together with
// the run's failure, if any; a deferred one returns the pending task
// for polling. When the triple already has an active task it is
// returned as-is and nothing new is dispatched.
func (s *GenerationService) RequestGeneration(ctx context.Context, userID, topicID uuid.UUID, kind domain.ArtifactKind, mode task.ExecutionMode) (*domain.GenerationTask, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.topics.GetByID(ctx, topicID); err != nil {
		return nil, err
	}

	cred, err := s.governor.Admit(ctx, userID)
	if err != nil {
		return nil, err
	}

	record, err := domain.NewGenerationTask(userID, topicID, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	persisted, started, err := s.tasks.UpsertForTriple(ctx, record)
	if err != nil {
		return nil, err
	}

	if !started {
		log.Info("reusing active generation task",
			slog.String("task_id", persisted.ID.String()),
			slog.String("kind", string(kind)))
		return persisted, nil
	}

	work := task.NewContentGenerationTask(persisted, cred, s.orchestrator)

	if mode == task.ModeInline {
		// The orchestrator writes the outcome onto the record. The run
		// error is returned alongside the terminal task so the transport
		// can tell a provider rate limit apart from a generic failure.
		runErr := s.inline.Dispatch(ctx, work)
		terminal, err := s.tasks.GetByID(ctx, persisted.ID)
		if err != nil {
			return nil, err
		}
		return terminal, runErr
	}

	if err := s.queued.Dispatch(ctx, work); err != nil {
		if markErr := s.tasks.MarkFailed(ctx, persisted.ID, err.Error()); markErr != nil {
			log.Error("failed to mark undispatchable task",
				slog.String("task_id", persisted.ID.String()),
				slog.String("error", markErr.Error()))
		}
		return nil, err
	}

	return persisted, nil
}

// PollTask returns the current task record for a triple.
func (s *GenerationService) PollTask(ctx context.Context, userID, topicID uuid.UUID, kind domain.ArtifactKind) (*domain.GenerationTask, error) {
	return s.tasks.GetByTriple(ctx, userID, topicID, kind)
}

// AnswerDoubt answers a student question about a topic, grounding the
// answer in the topic's stored notes when they exist. The call is
// admitted and metered like a generation request.
func (s *GenerationService) AnswerDoubt(ctx context.Context, userID, topicID uuid.UUID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question cannot be empty", domain.ErrValidation)
	}

	topic, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		return "", err
	}

	cred, err := s.governor.Admit(ctx, userID)
	if err != nil {
		return "", err
	}

	notesContext := ""
	if notes, err := s.artifacts.GetNotes(ctx, topicID); err == nil {
		notesContext = notes.Context()
	} else if !errors.Is(err, store.ErrNotesNotFound) {
		return "", err
	}

	answer, usage, err := s.generator.AnswerDoubt(ctx, question, topic.Name, notesContext, cred)
	if err != nil {
		return "", err
	}
	s.recordUsage(ctx, userID, usage, cred)

	return answer, nil
}

// TagQuestionTopic picks the best-matching topic for a question from the
// caller's candidate list. An empty result means the provider's answer
// matched no candidate.
func (s *GenerationService) TagQuestionTopic(ctx context.Context, userID uuid.UUID, question string, candidates []string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("%w: question cannot be empty", domain.ErrValidation)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: candidate topics cannot be empty", domain.ErrValidation)
	}

	cred, err := s.governor.Admit(ctx, userID)
	if err != nil {
		return "", err
	}

	topicName, usage, err := s.generator.TagQuestionTopic(ctx, question, candidates, cred)
	if err != nil {
		return "", err
	}
	s.recordUsage(ctx, userID, usage, cred)

	return topicName, nil
}

// SetCredential stores the user's personal provider key encrypted at
// rest and returns a masked form for display. An empty key clears the
// stored credential.
func (s *GenerationService) SetCredential(ctx context.Context, userID uuid.UUID, apiKey string) (string, error) {
	apiKey = strings.TrimSpace(apiKey)

	token, err := s.vault.Encrypt(apiKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credential: %w", err)
	}

	if err := s.profiles.SetEncryptedAPIKey(ctx, userID, token); err != nil {
		return "", err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("personal credential updated",
		slog.String("user_id", userID.String()),
		slog.Bool("cleared", apiKey == ""))
	return vault.Mask(apiKey), nil
}

// UsageSummary reports the user's daily usage, token ledger and derived
// cost. The lazy daily reset is applied in memory so a stale counter
// never shows through.
func (s *GenerationService) UsageSummary(ctx context.Context, userID uuid.UUID) (*UsageSummary, error) {
	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	remaining, err := s.governor.Remaining(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.ResetIfStale(timeNow())

	return &UsageSummary{
		DailyCount:            profile.DailyCount,
		DailyLimit:            s.dailyLimit,
		Remaining:             remaining,
		TotalInputTokens:      profile.TotalInputTokens,
		TotalOutputTokens:     profile.TotalOutputTokens,
		TotalTokens:           profile.TotalTokens(),
		EstimatedCost:         profile.EstimatedCost(s.pricing),
		HasPersonalCredential: s.vault.Decrypt(profile.EncryptedAPIKey) != "",
	}, nil
}

func (s *GenerationService) recordUsage(ctx context.Context, userID uuid.UUID, usage generation.TokenUsage, cred generation.Credential) {
	if err := s.governor.RecordUsage(ctx, userID, usage, !cred.Personal); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to record usage",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
	}
}
