package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/generation"
	"github.com/studyhall/studyhall-api/internal/platform/vault"
	"github.com/studyhall/studyhall-api/internal/service/quota"
	"github.com/studyhall/studyhall-api/internal/store"
	"github.com/studyhall/studyhall-api/internal/task"
)

// nopConnector satisfies the orchestrator's database requirement in
// tests that never reach a transaction.
type nopConnector struct{}

func (nopConnector) Connect(context.Context) (driver.Conn, error) {
	return nil, errors.New("no database in tests")
}

func (nopConnector) Driver() driver.Driver { return nil }

type fakeTopics struct {
	topics map[uuid.UUID]*domain.Topic
}

func (f *fakeTopics) GetByID(_ context.Context, id uuid.UUID) (*domain.Topic, error) {
	if t, ok := f.topics[id]; ok {
		return t, nil
	}
	return nil, store.ErrTopicNotFound
}

func (f *fakeTopics) Create(_ context.Context, t *domain.Topic) error {
	f.topics[t.ID] = t
	return nil
}

func (f *fakeTopics) WithTx(_ *sql.Tx) store.TopicStore { return f }

type fakeArtifacts struct {
	notes map[uuid.UUID]*domain.Notes
}

func (f *fakeArtifacts) GetNotes(_ context.Context, topicID uuid.UUID) (*domain.Notes, error) {
	if n, ok := f.notes[topicID]; ok {
		return n, nil
	}
	return nil, store.ErrNotesNotFound
}

func (f *fakeArtifacts) ReplaceNotes(_ context.Context, n *domain.Notes) error {
	f.notes[n.TopicID] = n
	return nil
}

func (f *fakeArtifacts) GetMindmap(_ context.Context, _ uuid.UUID) (*domain.Mindmap, error) {
	return nil, store.ErrMindmapNotFound
}

func (f *fakeArtifacts) ReplaceMindmap(_ context.Context, _ *domain.Mindmap) error { return nil }

func (f *fakeArtifacts) GetFlashcards(_ context.Context, _ uuid.UUID) ([]*domain.Flashcard, error) {
	return nil, nil
}

func (f *fakeArtifacts) ReplaceFlashcards(_ context.Context, _ uuid.UUID, _ []*domain.Flashcard) error {
	return nil
}

func (f *fakeArtifacts) GetMCQs(_ context.Context, _ uuid.UUID) ([]*domain.MCQ, error) {
	return nil, nil
}

func (f *fakeArtifacts) ReplaceMCQs(_ context.Context, _ uuid.UUID, _ []*domain.MCQ) error {
	return nil
}

func (f *fakeArtifacts) WithTx(_ *sql.Tx) store.ArtifactStore { return f }

type fakeTasks struct {
	records map[uuid.UUID]*domain.GenerationTask
}

func (f *fakeTasks) UpsertForTriple(_ context.Context, t *domain.GenerationTask) (*domain.GenerationTask, bool, error) {
	for _, existing := range f.records {
		if existing.UserID == t.UserID && existing.TopicID == t.TopicID && existing.Kind == t.Kind {
			if existing.Active() {
				return existing, false, nil
			}
			existing.Status = domain.TaskStatusPending
			existing.ErrorMessage = ""
			existing.Result = nil
			return existing, true, nil
		}
	}
	f.records[t.ID] = t
	return t, true, nil
}

func (f *fakeTasks) GetByTriple(_ context.Context, userID, topicID uuid.UUID, kind domain.ArtifactKind) (*domain.GenerationTask, error) {
	for _, t := range f.records {
		if t.UserID == userID && t.TopicID == topicID && t.Kind == kind {
			return t, nil
		}
	}
	return nil, store.ErrTaskNotFound
}

func (f *fakeTasks) GetByID(_ context.Context, id uuid.UUID) (*domain.GenerationTask, error) {
	if t, ok := f.records[id]; ok {
		return t, nil
	}
	return nil, store.ErrTaskNotFound
}

func (f *fakeTasks) MarkProcessing(_ context.Context, id uuid.UUID) error {
	f.records[id].Status = domain.TaskStatusProcessing
	return nil
}

func (f *fakeTasks) MarkCompleted(_ context.Context, id uuid.UUID, result *domain.TaskResult) error {
	f.records[id].Status = domain.TaskStatusCompleted
	f.records[id].Result = result
	return nil
}

func (f *fakeTasks) MarkFailed(_ context.Context, id uuid.UUID, msg string) error {
	f.records[id].Status = domain.TaskStatusFailed
	f.records[id].ErrorMessage = msg
	return nil
}

func (f *fakeTasks) FailActiveTasks(_ context.Context, _ string) (int64, error) { return 0, nil }

func (f *fakeTasks) FailStuckTasks(_ context.Context, _ time.Duration, _ string) (int64, error) {
	return 0, nil
}

func (f *fakeTasks) WithTx(_ *sql.Tx) store.GenerationTaskStore { return f }

type fakeProfiles struct {
	profiles map[uuid.UUID]*domain.UsageProfile
}

func (f *fakeProfiles) get(userID uuid.UUID) *domain.UsageProfile {
	if p, ok := f.profiles[userID]; ok {
		return p
	}
	p := domain.NewUsageProfile(userID)
	f.profiles[userID] = p
	return p
}

func (f *fakeProfiles) GetOrCreate(_ context.Context, userID uuid.UUID) (*domain.UsageProfile, error) {
	copied := *f.get(userID)
	return &copied, nil
}

func (f *fakeProfiles) GetForUpdate(_ context.Context, userID uuid.UUID) (*domain.UsageProfile, error) {
	copied := *f.get(userID)
	return &copied, nil
}

func (f *fakeProfiles) Update(_ context.Context, p *domain.UsageProfile) error {
	copied := *p
	f.profiles[p.UserID] = &copied
	return nil
}

func (f *fakeProfiles) AddUsage(_ context.Context, userID uuid.UUID, in, out int64, incr bool) error {
	p := f.get(userID)
	p.TotalInputTokens += in
	p.TotalOutputTokens += out
	if incr {
		p.DailyCount++
	}
	return nil
}

func (f *fakeProfiles) SetEncryptedAPIKey(_ context.Context, userID uuid.UUID, token string) error {
	f.get(userID).EncryptedAPIKey = token
	return nil
}

func (f *fakeProfiles) WithTx(_ *sql.Tx) store.UsageProfileStore { return f }

type fakeServiceGenerator struct {
	answer      string
	tagReply    string
	usage       generation.TokenUsage
	doubtCtx    string
	lastDoubtQ  string
	failAnswers bool
}

func (g *fakeServiceGenerator) GenerateNotes(_ context.Context, topic *domain.Topic, _ generation.Credential) (*domain.Notes, generation.TokenUsage, error) {
	n, err := domain.NewNotes(topic.ID, "s", "d", nil, "")
	return n, g.usage, err
}

func (g *fakeServiceGenerator) GenerateMindmap(_ context.Context, topic *domain.Topic, _ generation.Credential) (*domain.Mindmap, generation.TokenUsage, error) {
	m, err := domain.NewMindmap(topic.ID, topic.Name, nil)
	return m, g.usage, err
}

func (g *fakeServiceGenerator) GenerateFlashcards(_ context.Context, _ *domain.Topic, _ string, _ generation.Credential) ([]*domain.Flashcard, generation.TokenUsage, error) {
	return nil, g.usage, nil
}

func (g *fakeServiceGenerator) GenerateMCQs(_ context.Context, _ *domain.Topic, _ string, _ generation.Credential) ([]*domain.MCQ, generation.TokenUsage, error) {
	return nil, g.usage, nil
}

func (g *fakeServiceGenerator) TagQuestionTopic(_ context.Context, _ string, candidates []string, _ generation.Credential) (string, generation.TokenUsage, error) {
	if g.tagReply != "" {
		return g.tagReply, g.usage, nil
	}
	return candidates[0], g.usage, nil
}

func (g *fakeServiceGenerator) AnswerDoubt(_ context.Context, question, _, notesContext string, _ generation.Credential) (string, generation.TokenUsage, error) {
	if g.failAnswers {
		return "", g.usage, generation.ErrGenerationFailed
	}
	g.lastDoubtQ = question
	g.doubtCtx = notesContext
	return g.answer, g.usage, nil
}

type fakeGovernor struct {
	cred     generation.Credential
	deny     bool
	recorded []generation.TokenUsage
	shared   []bool
}

func (f *fakeGovernor) Admit(_ context.Context, _ uuid.UUID) (generation.Credential, error) {
	if f.deny {
		return generation.Credential{}, quota.ErrDailyLimitReached
	}
	return f.cred, nil
}

func (f *fakeGovernor) RecordUsage(_ context.Context, _ uuid.UUID, usage generation.TokenUsage, usedShared bool) error {
	f.recorded = append(f.recorded, usage)
	f.shared = append(f.shared, usedShared)
	return nil
}

func (f *fakeGovernor) Remaining(_ context.Context, _ uuid.UUID) (int, error) { return 3, nil }

// fakeExecutor either records the dispatch or simulates the run's
// terminal outcome the way the orchestrator would write it.
type fakeExecutor struct {
	tasks      *fakeTasks
	complete   bool
	fail       error
	dispatched []uuid.UUID
	err        error
}

func (f *fakeExecutor) Dispatch(ctx context.Context, t task.Task) error {
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, t.ID())
	if f.fail != nil {
		if err := f.tasks.MarkFailed(ctx, t.ID(), f.fail.Error()); err != nil {
			return err
		}
		return f.fail
	}
	if f.complete {
		return f.tasks.MarkCompleted(ctx, t.ID(), &domain.TaskResult{NotesGenerated: true})
	}
	return nil
}

type serviceFixture struct {
	svc       *GenerationService
	topics    *fakeTopics
	artifacts *fakeArtifacts
	tasks     *fakeTasks
	profiles  *fakeProfiles
	generator *fakeServiceGenerator
	governor  *fakeGovernor
	inline    *fakeExecutor
	queued    *fakeExecutor
	vault     *vault.Vault
	topic     *domain.Topic
	userID    uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	topic, err := domain.NewTopic("Thermodynamics", "Physics")
	require.NoError(t, err)

	v, err := vault.New("test-vault-secret-with-enough-length")
	require.NoError(t, err)

	f := &serviceFixture{
		topics:    &fakeTopics{topics: map[uuid.UUID]*domain.Topic{topic.ID: topic}},
		artifacts: &fakeArtifacts{notes: map[uuid.UUID]*domain.Notes{}},
		tasks:     &fakeTasks{records: map[uuid.UUID]*domain.GenerationTask{}},
		profiles:  &fakeProfiles{profiles: map[uuid.UUID]*domain.UsageProfile{}},
		generator: &fakeServiceGenerator{answer: "because entropy"},
		governor:  &fakeGovernor{cred: generation.Credential{Key: "shared"}},
		vault:     v,
		topic:     topic,
		userID:    uuid.New(),
	}
	f.inline = &fakeExecutor{tasks: f.tasks, complete: true}
	f.queued = &fakeExecutor{tasks: f.tasks}

	orchestrator := task.NewOrchestrator(
		sql.OpenDB(nopConnector{}),
		f.topics, f.artifacts, f.tasks, f.generator, f.governor, nil,
	)

	f.svc = NewGenerationService(GenerationServiceParams{
		Topics:       f.topics,
		Artifacts:    f.artifacts,
		Tasks:        f.tasks,
		Profiles:     f.profiles,
		Generator:    f.generator,
		Governor:     f.governor,
		Orchestrator: orchestrator,
		Inline:       f.inline,
		Queued:       f.queued,
		Vault:        v,
		Pricing:      domain.TokenPricing{InputPerMillion: 0.10, OutputPerMillion: 0.40},
		DailyLimit:   3,
	})
	return f
}

func TestRequestGeneration(t *testing.T) {
	t.Parallel()

	t.Run("unknown topic is reported as not found", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		_, err := f.svc.RequestGeneration(context.Background(), f.userID, uuid.New(), domain.KindAll, task.ModeDeferred)
		assert.ErrorIs(t, err, store.ErrTopicNotFound)
		assert.Empty(t, f.tasks.records, "no task row for an unknown topic")
	})

	t.Run("quota denial creates no task", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		f.governor.deny = true

		_, err := f.svc.RequestGeneration(context.Background(), f.userID, f.topic.ID, domain.KindAll, task.ModeDeferred)
		assert.ErrorIs(t, err, quota.ErrDailyLimitReached)
		assert.Empty(t, f.tasks.records)
	})

	t.Run("deferred request returns the pending task", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		got, err := f.svc.RequestGeneration(context.Background(), f.userID, f.topic.ID, domain.KindNotes, task.ModeDeferred)
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusPending, got.Status)
		assert.Len(t, f.queued.dispatched, 1)
		assert.Empty(t, f.inline.dispatched)
	})

	t.Run("inline request returns the terminal task", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		got, err := f.svc.RequestGeneration(context.Background(), f.userID, f.topic.ID, domain.KindAll, task.ModeInline)
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusCompleted, got.Status)
		assert.Len(t, f.inline.dispatched, 1)
		assert.Empty(t, f.queued.dispatched)
	})

	t.Run("inline failure returns the failed task and its cause", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		f.inline.complete = false
		f.inline.fail = fmt.Errorf("notes: %w", generation.ErrQuotaExceeded)

		got, err := f.svc.RequestGeneration(context.Background(), f.userID, f.topic.ID, domain.KindNotes, task.ModeInline)
		require.ErrorIs(t, err, generation.ErrQuotaExceeded)

		require.NotNil(t, got)
		assert.Equal(t, domain.TaskStatusFailed, got.Status)
		assert.Contains(t, got.ErrorMessage, "notes")
	})

	t.Run("active task for the triple is reused without dispatch", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		ctx := context.Background()

		first, err := f.svc.RequestGeneration(ctx, f.userID, f.topic.ID, domain.KindMCQs, task.ModeDeferred)
		require.NoError(t, err)

		second, err := f.svc.RequestGeneration(ctx, f.userID, f.topic.ID, domain.KindMCQs, task.ModeDeferred)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, f.queued.dispatched, 1, "second request must not dispatch again")
	})

	t.Run("terminal task is replaced by a new run", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		ctx := context.Background()

		first, err := f.svc.RequestGeneration(ctx, f.userID, f.topic.ID, domain.KindAll, task.ModeInline)
		require.NoError(t, err)
		require.Equal(t, domain.TaskStatusCompleted, first.Status)

		second, err := f.svc.RequestGeneration(ctx, f.userID, f.topic.ID, domain.KindAll, task.ModeDeferred)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID, "same row, reset")
		assert.Len(t, f.queued.dispatched, 1)
	})

	t.Run("undispatchable deferred task is marked failed", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		f.queued.err = task.ErrQueueFull

		_, err := f.svc.RequestGeneration(context.Background(), f.userID, f.topic.ID, domain.KindNotes, task.ModeDeferred)
		require.ErrorIs(t, err, task.ErrQueueFull)

		record, err := f.tasks.GetByTriple(context.Background(), f.userID, f.topic.ID, domain.KindNotes)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailed, record.Status)
	})
}

func TestPollTask(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.PollTask(ctx, f.userID, f.topic.ID, domain.KindAll)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	created, err := f.svc.RequestGeneration(ctx, f.userID, f.topic.ID, domain.KindAll, task.ModeDeferred)
	require.NoError(t, err)

	polled, err := f.svc.PollTask(ctx, f.userID, f.topic.ID, domain.KindAll)
	require.NoError(t, err)
	assert.Equal(t, created.ID, polled.ID)
}

func TestAnswerDoubt(t *testing.T) {
	t.Parallel()

	t.Run("empty question fails validation", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		_, err := f.svc.AnswerDoubt(context.Background(), f.userID, f.topic.ID, "   ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("stored notes ground the answer", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		notes, err := domain.NewNotes(f.topic.ID, "short", "long explanation", nil, "")
		require.NoError(t, err)
		f.artifacts.notes[f.topic.ID] = notes
		f.generator.usage = generation.TokenUsage{InputTokens: 7, OutputTokens: 11}

		answer, err := f.svc.AnswerDoubt(context.Background(), f.userID, f.topic.ID, "why?")
		require.NoError(t, err)

		assert.Equal(t, "because entropy", answer)
		assert.Equal(t, "long explanation", f.generator.doubtCtx)
		require.Len(t, f.governor.recorded, 1)
		assert.Equal(t, generation.TokenUsage{InputTokens: 7, OutputTokens: 11}, f.governor.recorded[0])
		assert.True(t, f.governor.shared[0])
	})

	t.Run("missing notes still answer with empty context", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		answer, err := f.svc.AnswerDoubt(context.Background(), f.userID, f.topic.ID, "why?")
		require.NoError(t, err)
		assert.Equal(t, "because entropy", answer)
		assert.Empty(t, f.generator.doubtCtx)
	})

	t.Run("quota denial blocks the call", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		f.governor.deny = true
		_, err := f.svc.AnswerDoubt(context.Background(), f.userID, f.topic.ID, "why?")
		assert.ErrorIs(t, err, quota.ErrDailyLimitReached)
	})

	t.Run("a failed answer records no usage", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		f.generator.failAnswers = true
		f.generator.usage = generation.TokenUsage{InputTokens: 7, OutputTokens: 0}

		_, err := f.svc.AnswerDoubt(context.Background(), f.userID, f.topic.ID, "why?")
		require.ErrorIs(t, err, generation.ErrGenerationFailed)
		assert.Empty(t, f.governor.recorded)
	})
}

func TestTagQuestionTopic(t *testing.T) {
	t.Parallel()

	t.Run("returns the chosen candidate and meters usage", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		f.generator.usage = generation.TokenUsage{InputTokens: 3, OutputTokens: 1}

		topicName, err := f.svc.TagQuestionTopic(context.Background(), f.userID, "what is delta G?", []string{"Thermodynamics", "Optics"})
		require.NoError(t, err)

		assert.Equal(t, "Thermodynamics", topicName)
		require.Len(t, f.governor.recorded, 1)
	})

	t.Run("rejects empty candidate list", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		_, err := f.svc.TagQuestionTopic(context.Background(), f.userID, "question", nil)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestSetCredential(t *testing.T) {
	t.Parallel()

	t.Run("stores the key encrypted and returns a mask", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		masked, err := f.svc.SetCredential(context.Background(), f.userID, "AIzaSyExampleKey12345")
		require.NoError(t, err)

		assert.Equal(t, "AIza...2345", masked)

		stored := f.profiles.get(f.userID).EncryptedAPIKey
		require.NotEmpty(t, stored)
		assert.NotContains(t, stored, "AIzaSyExampleKey12345")
		assert.Equal(t, "AIzaSyExampleKey12345", f.vault.Decrypt(stored))
	})

	t.Run("empty key clears the credential", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		_, err := f.svc.SetCredential(context.Background(), f.userID, "AIzaSyExampleKey12345")
		require.NoError(t, err)

		masked, err := f.svc.SetCredential(context.Background(), f.userID, "")
		require.NoError(t, err)

		assert.Empty(t, masked)
		assert.Empty(t, f.profiles.get(f.userID).EncryptedAPIKey)
	})
}

func TestUsageSummary(t *testing.T) {
	t.Parallel()

	t.Run("derives cost from the token ledger", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		p := f.profiles.get(f.userID)
		p.TotalInputTokens = 1_000_000
		p.TotalOutputTokens = 1_000_000
		p.DailyCount = 2
		p.LastUsageDate = time.Now().UTC()

		summary, err := f.svc.UsageSummary(context.Background(), f.userID)
		require.NoError(t, err)

		assert.Equal(t, 2, summary.DailyCount)
		assert.Equal(t, 3, summary.DailyLimit)
		assert.Equal(t, int64(2_000_000), summary.TotalTokens)
		assert.InDelta(t, 0.50, summary.EstimatedCost, 1e-9)
		assert.False(t, summary.HasPersonalCredential)
	})

	t.Run("reports a stored personal credential", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		_, err := f.svc.SetCredential(context.Background(), f.userID, "AIzaSyExampleKey12345")
		require.NoError(t, err)

		summary, err := f.svc.UsageSummary(context.Background(), f.userID)
		require.NoError(t, err)
		assert.True(t, summary.HasPersonalCredential)
	})

	t.Run("stale daily counter reads as zero", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture(t)
		p := f.profiles.get(f.userID)
		p.DailyCount = 3
		p.LastUsageDate = time.Now().UTC().Add(-48 * time.Hour)

		summary, err := f.svc.UsageSummary(context.Background(), f.userID)
		require.NoError(t, err)
		assert.Equal(t, 0, summary.DailyCount)
	})
}
