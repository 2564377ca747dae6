// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/api/shared"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
)

// Auth validates bearer tokens issued by the identity provider and
// attaches the authenticated user's ID to the request context. Tokens
// are HMAC-signed with the configured secret; the subject claim carries
// the user's UUID.
type Auth struct {
	secret []byte
	logger *slog.Logger
}

// NewAuth creates an Auth middleware verifying tokens with the given secret.
func NewAuth(secret string, log *slog.Logger) *Auth {
	if secret == "" {
		panic("jwt secret cannot be empty")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Auth{
		secret: []byte(secret),
		logger: log.With(slog.String("component", "auth_middleware")),
	}
}

// Authenticate rejects requests without a valid bearer token.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "missing authorization header")
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		userID, err := a.parseToken(raw)
		if err != nil {
			logger.FromContextOrDefault(r.Context(), a.logger).Debug("token rejected",
				slog.String("error", err.Error()))
			shared.RespondWithError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithUserID(r.Context(), userID)))
	})
}

func (a *Auth) parseToken(raw string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return uuid.Nil, err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read subject claim: %w", err)
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject claim is not a valid user ID: %w", err)
	}

	return userID, nil
}
