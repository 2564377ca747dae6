package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhall/studyhall-api/internal/api/shared"
	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/generation"
	"github.com/studyhall/studyhall-api/internal/service"
	"github.com/studyhall/studyhall-api/internal/service/quota"
	"github.com/studyhall/studyhall-api/internal/store"
	"github.com/studyhall/studyhall-api/internal/task"
)

// fakeService is a canned GenerationService for handler tests.
type fakeService struct {
	record    *domain.GenerationTask
	answer    string
	topicName string
	masked    string
	summary   *service.UsageSummary
	err       error

	lastKind domain.ArtifactKind
	lastMode task.ExecutionMode
}

func (f *fakeService) RequestGeneration(_ context.Context, userID, topicID uuid.UUID, kind domain.ArtifactKind, mode task.ExecutionMode) (*domain.GenerationTask, error) {
	f.lastKind = kind
	f.lastMode = mode
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func (f *fakeService) PollTask(_ context.Context, _, _ uuid.UUID, _ domain.ArtifactKind) (*domain.GenerationTask, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func (f *fakeService) AnswerDoubt(_ context.Context, _, _ uuid.UUID, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeService) TagQuestionTopic(_ context.Context, _ uuid.UUID, _ string, _ []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.topicName, nil
}

func (f *fakeService) SetCredential(_ context.Context, _ uuid.UUID, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.masked, nil
}

func (f *fakeService) UsageSummary(_ context.Context, _ uuid.UUID) (*service.UsageSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

type handlerFixture struct {
	svc    *fakeService
	router chi.Router
	userID uuid.UUID
	topic  uuid.UUID
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	userID := uuid.New()
	topicID := uuid.New()

	record, err := domain.NewGenerationTask(userID, topicID, domain.KindAll)
	require.NoError(t, err)

	svc := &fakeService{
		record:    record,
		answer:    "an answer",
		topicName: "Algebra",
		masked:    "AIza...2345",
		summary:   &service.UsageSummary{DailyLimit: 3},
	}

	handler := NewGenerationHandler(svc, nil)

	r := chi.NewRouter()
	// Inject the authenticated user directly; the JWT middleware has its
	// own tests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.WithUserID(req.Context(), userID)))
		})
	})
	r.Route("/topics/{topicID}", func(r chi.Router) {
		r.Post("/generate", handler.Generate)
		r.Get("/generation-status", handler.GenerationStatus)
		r.Post("/doubts", handler.AnswerDoubt)
	})
	r.Post("/questions/tag", handler.TagQuestion)
	r.Get("/profile/usage", handler.UsageSummary)
	r.Put("/profile/credential", handler.SetCredential)

	return &handlerFixture{svc: svc, router: r, userID: userID, topic: topicID}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGenerateEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("deferred request responds 202", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPost, "/topics/"+f.topic.String()+"/generate",
			map[string]string{"kind": "all"})

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, domain.KindAll, f.svc.lastKind)
		assert.Equal(t, task.ModeDeferred, f.svc.lastMode)

		var resp taskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "pending", resp.Status)
	})

	t.Run("inline request responds 200", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPost, "/topics/"+f.topic.String()+"/generate",
			map[string]string{"kind": "notes", "mode": "inline"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, task.ModeInline, f.svc.lastMode)
	})

	t.Run("invalid kind responds 400", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPost, "/topics/"+f.topic.String()+"/generate",
			map[string]string{"kind": "posters"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid topic ID responds 400", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPost, "/topics/not-a-uuid/generate",
			map[string]string{"kind": "all"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("inline provider rate limit responds 429", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		f.svc.err = fmt.Errorf("notes: %w", generation.ErrQuotaExceeded)
		rec := f.do(t, http.MethodPost, "/topics/"+f.topic.String()+"/generate",
			map[string]string{"kind": "notes", "mode": "inline"})

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("inline generation failure responds 500", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		f.svc.err = fmt.Errorf("notes: %w", generation.ErrGenerationFailed)
		rec := f.do(t, http.MethodPost, "/topics/"+f.topic.String()+"/generate",
			map[string]string{"kind": "notes", "mode": "inline"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "internal server error")
	})

	t.Run("quota denial responds 429", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		f.svc.err = quota.ErrDailyLimitReached
		rec := f.do(t, http.MethodPost, "/topics/"+f.topic.String()+"/generate",
			map[string]string{"kind": "all"})

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "daily generation limit")
	})

	t.Run("unknown topic responds 404", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		f.svc.err = store.ErrTopicNotFound
		rec := f.do(t, http.MethodPost, "/topics/"+f.topic.String()+"/generate",
			map[string]string{"kind": "all"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGenerationStatusEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("returns the task view", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodGet, "/topics/"+f.topic.String()+"/generation-status?kind=all", nil)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp taskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "all", resp.Kind)
	})

	t.Run("no task responds 404", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		f.svc.err = store.ErrTaskNotFound
		rec := f.do(t, http.MethodGet, "/topics/"+f.topic.String()+"/generation-status?kind=all", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing kind responds 400", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodGet, "/topics/"+f.topic.String()+"/generation-status", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDoubtEndpoint(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodPost, "/topics/"+f.topic.String()+"/doubts",
		map[string]string{"question": "why is the sky blue?"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "an answer")
}

func TestTagEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("returns the chosen topic", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPost, "/questions/tag",
			map[string]any{"question": "solve for x", "candidates": []string{"Algebra", "Geometry"}})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Algebra")
	})

	t.Run("empty candidates responds 400", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPost, "/questions/tag",
			map[string]any{"question": "solve for x", "candidates": []string{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProfileEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("usage summary", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodGet, "/profile/usage", nil)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp service.UsageSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.DailyLimit)
	})

	t.Run("set credential returns the mask", func(t *testing.T) {
		t.Parallel()

		f := newHandlerFixture(t)
		rec := f.do(t, http.MethodPut, "/profile/credential",
			map[string]string{"api_key": "AIzaSyExampleKey12345"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "AIza...2345")
	})
}

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"daily limit", quota.ErrDailyLimitReached, http.StatusTooManyRequests},
		{"provider quota", generation.ErrQuotaExceeded, http.StatusTooManyRequests},
		{"queue full", task.ErrQueueFull, http.StatusTooManyRequests},
		{"topic not found", store.ErrTopicNotFound, http.StatusNotFound},
		{"task not found", store.ErrTaskNotFound, http.StatusNotFound},
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"artifact kind", domain.ErrInvalidArtifactKind, http.StatusBadRequest},
		{"execution mode", task.ErrInvalidExecutionMode, http.StatusBadRequest},
		{"generation failure", generation.ErrGenerationFailed, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestInternalErrorsAreMasked(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	f.svc.err = errors.New("pq: connection refused on 10.0.0.3")
	rec := f.do(t, http.MethodGet, "/profile/usage", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	assert.Contains(t, rec.Body.String(), "internal server error")
}
