package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/api/shared"
	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
	"github.com/studyhall/studyhall-api/internal/service"
	"github.com/studyhall/studyhall-api/internal/task"
)

// GenerationService is the service surface the handlers depend on.
type GenerationService interface {
	RequestGeneration(ctx context.Context, userID, topicID uuid.UUID, kind domain.ArtifactKind, mode task.ExecutionMode) (*domain.GenerationTask, error)
	PollTask(ctx context.Context, userID, topicID uuid.UUID, kind domain.ArtifactKind) (*domain.GenerationTask, error)
	AnswerDoubt(ctx context.Context, userID, topicID uuid.UUID, question string) (string, error)
	TagQuestionTopic(ctx context.Context, userID uuid.UUID, question string, candidates []string) (string, error)
	SetCredential(ctx context.Context, userID uuid.UUID, apiKey string) (string, error)
	UsageSummary(ctx context.Context, userID uuid.UUID) (*service.UsageSummary, error)
}

// GenerationHandler exposes the generation pipeline over HTTP.
type GenerationHandler struct {
	service  GenerationService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewGenerationHandler creates a handler backed by the given service.
func NewGenerationHandler(svc GenerationService, log *slog.Logger) *GenerationHandler {
	if svc == nil {
		panic("service cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &GenerationHandler{
		service:  svc,
		validate: validator.New(),
		logger:   log.With(slog.String("component", "generation_handler")),
	}
}

// generateRequest is the body for POST /topics/{topicID}/generate.
type generateRequest struct {
	Kind string `json:"kind" validate:"required"`
	Mode string `json:"mode" validate:"omitempty,oneof=inline deferred"`
}

// doubtRequest is the body for POST /topics/{topicID}/doubts.
type doubtRequest struct {
	Question string `json:"question" validate:"required"`
}

// tagRequest is the body for POST /questions/tag.
type tagRequest struct {
	Question   string   `json:"question" validate:"required"`
	Candidates []string `json:"candidates" validate:"required,min=1"`
}

// credentialRequest is the body for PUT /profile/credential.
type credentialRequest struct {
	APIKey string `json:"api_key"`
}

// taskResponse is the JSON view of a generation task record.
type taskResponse struct {
	ID          uuid.UUID          `json:"id"`
	TopicID     uuid.UUID          `json:"topic_id"`
	Kind        string             `json:"kind"`
	Status      string             `json:"status"`
	Error       string             `json:"error,omitempty"`
	Result      *domain.TaskResult `json:"result,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

func newTaskResponse(t *domain.GenerationTask) taskResponse {
	return taskResponse{
		ID:          t.ID,
		TopicID:     t.TopicID,
		Kind:        string(t.Kind),
		Status:      string(t.Status),
		Error:       t.ErrorMessage,
		Result:      t.Result,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

// Generate handles POST /topics/{topicID}/generate.
// Inline requests respond 200 with the terminal task; deferred requests
// respond 202 with the pending task for polling.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, topicID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if !h.decode(w, r, &req) {
		return
	}

	kind, err := domain.ParseArtifactKind(req.Kind)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	mode, err := task.ParseExecutionMode(req.Mode)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	record, err := h.service.RequestGeneration(r.Context(), userID, topicID, kind, mode)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	status := http.StatusAccepted
	if mode == task.ModeInline {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, newTaskResponse(record))
}

// GenerationStatus handles GET /topics/{topicID}/generation-status.
func (h *GenerationHandler) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	userID, topicID, ok := h.identify(w, r)
	if !ok {
		return
	}

	kind, err := domain.ParseArtifactKind(r.URL.Query().Get("kind"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	record, err := h.service.PollTask(r.Context(), userID, topicID, kind)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponse(record))
}

// AnswerDoubt handles POST /topics/{topicID}/doubts.
func (h *GenerationHandler) AnswerDoubt(w http.ResponseWriter, r *http.Request) {
	userID, topicID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req doubtRequest
	if !h.decode(w, r, &req) {
		return
	}

	answer, err := h.service.AnswerDoubt(r.Context(), userID, topicID, req.Question)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"answer": answer})
}

// TagQuestion handles POST /questions/tag.
func (h *GenerationHandler) TagQuestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identifyUser(w, r)
	if !ok {
		return
	}

	var req tagRequest
	if !h.decode(w, r, &req) {
		return
	}

	topicName, err := h.service.TagQuestionTopic(r.Context(), userID, req.Question, req.Candidates)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"topic": topicName})
}

// UsageSummary handles GET /profile/usage.
func (h *GenerationHandler) UsageSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identifyUser(w, r)
	if !ok {
		return
	}

	summary, err := h.service.UsageSummary(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// SetCredential handles PUT /profile/credential.
func (h *GenerationHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identifyUser(w, r)
	if !ok {
		return
	}

	var req credentialRequest
	if !h.decode(w, r, &req) {
		return
	}

	masked, err := h.service.SetCredential(r.Context(), userID, req.APIKey)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"api_key_masked": masked})
}

// identify extracts the authenticated user and the topicID path param.
func (h *GenerationHandler) identify(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := h.identifyUser(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	topicID, err := uuid.Parse(chi.URLParam(r, "topicID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid topic ID")
		return uuid.Nil, uuid.Nil, false
	}

	return userID, topicID, true
}

func (h *GenerationHandler) identifyUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := shared.GetUserID(r.Context())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

// decode parses and validates a JSON request body.
func (h *GenerationHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validate.Struct(v); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}

	return true
}

func (h *GenerationHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContextOrDefault(r.Context(), h.logger).Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	shared.RespondWithError(w, r, status, safeMessage(err, status))
}
