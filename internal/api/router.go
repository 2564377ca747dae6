package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/studyhall/studyhall-api/internal/api/middleware"
	"github.com/studyhall/studyhall-api/internal/api/shared"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
)

// NewRouter assembles the HTTP routes. Everything except the health
// check sits behind bearer-token authentication.
func NewRouter(handler *GenerationHandler, auth *middleware.Auth, log *slog.Logger) chi.Router {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(2 * time.Minute))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		shared.RespondWithJSON(w, req, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)

		r.Route("/topics/{topicID}", func(r chi.Router) {
			r.Post("/generate", handler.Generate)
			r.Get("/generation-status", handler.GenerationStatus)
			r.Post("/doubts", handler.AnswerDoubt)
		})

		r.Post("/questions/tag", handler.TagQuestion)

		r.Route("/profile", func(r chi.Router) {
			r.Get("/usage", handler.UsageSummary)
			r.Put("/credential", handler.SetCredential)
		})
	})

	return r
}

// requestLogger attaches a request-scoped logger carrying the request ID
// to the context and emits one line per request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.With(slog.String("request_id", chimiddleware.GetReqID(r.Context())))
			ctx := logger.WithLogger(r.Context(), reqLog)

			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLog.Info("request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)))
		})
	}
}
