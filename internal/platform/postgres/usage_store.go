package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
	"github.com/studyhall/studyhall-api/internal/store"
)

// PostgresUsageProfileStore implements the store.UsageProfileStore
// interface using a PostgreSQL database as the storage backend.
type PostgresUsageProfileStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUsageProfileStore creates a new PostgreSQL implementation of
// the UsageProfileStore interface. If logger is nil, the default logger
// is used.
func NewPostgresUsageProfileStore(db store.DBTX, logger *slog.Logger) *PostgresUsageProfileStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUsageProfileStore{
		db:     db,
		logger: logger.With(slog.String("component", "usage_profile_store")),
	}
}

var _ store.UsageProfileStore = (*PostgresUsageProfileStore)(nil)

const profileColumns = `user_id, encrypted_api_key, daily_count, last_usage_date, total_input_tokens, total_output_tokens`

// GetOrCreate implements store.UsageProfileStore.GetOrCreate
func (s *PostgresUsageProfileStore) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.UsageProfile, error) {
	if err := s.ensureExists(ctx, userID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM usage_profiles WHERE user_id = $1`, profileColumns)
	return s.scanProfile(s.db.QueryRowContext(ctx, query, userID))
}

// GetForUpdate implements store.UsageProfileStore.GetForUpdate.
// The row lock only outlives this call when the store is bound to a
// transaction via WithTx.
func (s *PostgresUsageProfileStore) GetForUpdate(ctx context.Context, userID uuid.UUID) (*domain.UsageProfile, error) {
	if err := s.ensureExists(ctx, userID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM usage_profiles WHERE user_id = $1 FOR UPDATE`, profileColumns)
	return s.scanProfile(s.db.QueryRowContext(ctx, query, userID))
}

// Update implements store.UsageProfileStore.Update
func (s *PostgresUsageProfileStore) Update(ctx context.Context, profile *domain.UsageProfile) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE usage_profiles
		SET encrypted_api_key = $2,
		    daily_count = $3,
		    last_usage_date = $4,
		    total_input_tokens = $5,
		    total_output_tokens = $6
		WHERE user_id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		profile.UserID,
		nullIfEmpty(profile.EncryptedAPIKey),
		profile.DailyCount,
		profile.LastUsageDate,
		profile.TotalInputTokens,
		profile.TotalOutputTokens,
	)
	if err != nil {
		log.Error("failed to update usage profile",
			slog.String("user_id", profile.UserID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrProfileNotFound
	}

	return nil
}

// AddUsage implements store.UsageProfileStore.AddUsage.
//
// A single statement does the whole read-modify-write, so two concurrent
// calls serialize on the row and neither increment is lost. The CASE on
// last_usage_date gives the daily counter its lazy calendar-day reset.
func (s *PostgresUsageProfileStore) AddUsage(ctx context.Context, userID uuid.UUID, inputTokens, outputTokens int64, incrementDaily bool) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.ensureExists(ctx, userID); err != nil {
		return err
	}

	query := `
		UPDATE usage_profiles
		SET total_input_tokens = total_input_tokens + $2,
		    total_output_tokens = total_output_tokens + $3,
		    daily_count = CASE
		        WHEN NOT $4 THEN daily_count
		        WHEN last_usage_date < $5 THEN 1
		        ELSE daily_count + 1
		    END,
		    last_usage_date = CASE WHEN $4 THEN $5 ELSE last_usage_date END
		WHERE user_id = $1
	`

	today := time.Now().UTC().Truncate(24 * time.Hour)
	_, err := s.db.ExecContext(ctx, query, userID, inputTokens, outputTokens, incrementDaily, today)
	if err != nil {
		log.Error("failed to record usage",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// SetEncryptedAPIKey implements store.UsageProfileStore.SetEncryptedAPIKey
func (s *PostgresUsageProfileStore) SetEncryptedAPIKey(ctx context.Context, userID uuid.UUID, token string) error {
	if err := s.ensureExists(ctx, userID); err != nil {
		return err
	}

	query := `UPDATE usage_profiles SET encrypted_api_key = $2 WHERE user_id = $1`

	_, err := s.db.ExecContext(ctx, query, userID, nullIfEmpty(token))
	if err != nil {
		return MapError(err)
	}

	return nil
}

// WithTx implements store.UsageProfileStore.WithTx
func (s *PostgresUsageProfileStore) WithTx(tx *sql.Tx) store.UsageProfileStore {
	return &PostgresUsageProfileStore{db: tx, logger: s.logger}
}

// ensureExists lazily creates the profile row on first touch.
func (s *PostgresUsageProfileStore) ensureExists(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO usage_profiles (user_id, daily_count, last_usage_date, total_input_tokens, total_output_tokens)
		VALUES ($1, 0, $2, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if _, err := s.db.ExecContext(ctx, query, userID, today); err != nil {
		return MapError(err)
	}

	return nil
}

func (s *PostgresUsageProfileStore) scanProfile(row *sql.Row) (*domain.UsageProfile, error) {
	var profile domain.UsageProfile
	var encryptedKey sql.NullString

	err := row.Scan(
		&profile.UserID,
		&encryptedKey,
		&profile.DailyCount,
		&profile.LastUsageDate,
		&profile.TotalInputTokens,
		&profile.TotalOutputTokens,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProfileNotFound
		}
		return nil, MapError(err)
	}

	profile.EncryptedAPIKey = encryptedKey.String
	return &profile, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
