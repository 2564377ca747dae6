package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/domain"
)

// UsageProfileStore defines persistence for per-user metering state.
type UsageProfileStore interface {
	// GetOrCreate retrieves the user's profile, creating an empty one on
	// first access.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.UsageProfile, error)

	// GetForUpdate retrieves the profile with a row-level lock. Must be
	// called on a store bound to a transaction via WithTx; the lock is
	// held until the transaction ends. Creates the profile if missing.
	GetForUpdate(ctx context.Context, userID uuid.UUID) (*domain.UsageProfile, error)

	// Update persists the mutable fields of a profile.
	Update(ctx context.Context, profile *domain.UsageProfile) error

	// AddUsage atomically folds a metering record into the profile in a
	// single statement: token totals are always added, and the daily
	// counter is incremented (with lazy calendar-day reset) only when
	// incrementDaily is true.
	AddUsage(ctx context.Context, userID uuid.UUID, inputTokens, outputTokens int64, incrementDaily bool) error

	// SetEncryptedAPIKey stores the vault token for the user's personal
	// credential. An empty token clears it.
	SetEncryptedAPIKey(ctx context.Context, userID uuid.UUID, token string) error

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) UsageProfileStore
}
