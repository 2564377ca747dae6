// Package quota enforces the shared-credential usage policy: a fixed
// number of generation requests per user per calendar day on the system
// credential, with no cap for users supplying their own provider key.
package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/generation"
	"github.com/studyhall/studyhall-api/internal/platform/logger"
	"github.com/studyhall/studyhall-api/internal/platform/vault"
	"github.com/studyhall/studyhall-api/internal/store"
)

// ErrDailyLimitReached is returned by Admit when the caller has used up
// the day's shared-credential allowance. The message is user-facing.
var ErrDailyLimitReached = errors.New("daily generation limit reached, try again tomorrow or add your own Gemini API key in settings")

// Governor decides, per request, which provider credential a user may
// use and whether the request is allowed at all. Admission runs inside a
// transaction with a row lock on the user's profile, so two requests from
// the same user serialize rather than double-spend the last quota slot.
// The cap stays best-effort across the admit/record gap: admission does
// not reserve a slot, it only refuses once the recorded count has reached
// the limit.
type Governor struct {
	profiles   store.UsageProfileStore
	vault      *vault.Vault
	sharedKey  string
	dailyLimit int
	logger     *slog.Logger

	runTx func(ctx context.Context, fn store.TxFn) error
	now   func() time.Time
}

// NewGovernor creates a Governor backed by the given database and
// profile store. sharedKey is the system provider credential handed to
// admitted requests that have no personal key.
func NewGovernor(db *sql.DB, profiles store.UsageProfileStore, v *vault.Vault, sharedKey string, dailyLimit int, log *slog.Logger) *Governor {
	if db == nil {
		panic("db cannot be nil")
	}
	if profiles == nil {
		panic("profiles cannot be nil")
	}
	if v == nil {
		panic("vault cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Governor{
		profiles:   profiles,
		vault:      v,
		sharedKey:  sharedKey,
		dailyLimit: dailyLimit,
		logger:     log.With(slog.String("component", "quota_governor")),
		runTx: func(ctx context.Context, fn store.TxFn) error {
			return store.RunInTransaction(ctx, db, fn)
		},
		now: time.Now,
	}
}

// Admit decides whether the user may make a generation request and which
// credential it should run under.
//
// A stored personal key short-circuits the cap entirely. Otherwise the
// daily counter is compared against the limit after a lazy calendar-day
// reset, and the shared credential is granted while slots remain.
func (g *Governor) Admit(ctx context.Context, userID uuid.UUID) (generation.Credential, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	var cred generation.Credential
	err := g.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		profiles := g.profiles.WithTx(tx)

		profile, err := profiles.GetForUpdate(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load usage profile: %w", err)
		}

		// An undecryptable stored key degrades to "no personal key", so
		// the user falls back onto the shared-credential cap.
		if personal := g.vault.Decrypt(profile.EncryptedAPIKey); personal != "" {
			cred = generation.Credential{Key: personal, Personal: true}
			return nil
		}

		if profile.ResetIfStale(g.now()) {
			if err := profiles.Update(ctx, profile); err != nil {
				return fmt.Errorf("failed to persist daily reset: %w", err)
			}
		}

		if profile.DailyCount >= g.dailyLimit {
			log.Info("generation request denied by daily limit",
				slog.String("user_id", userID.String()),
				slog.Int("daily_count", profile.DailyCount),
				slog.Int("daily_limit", g.dailyLimit))
			return ErrDailyLimitReached
		}

		cred = generation.Credential{Key: g.sharedKey, Personal: false}
		return nil
	})
	if err != nil {
		return generation.Credential{}, err
	}

	return cred, nil
}

// RecordUsage folds one request's metering record into the user's
// profile. The daily counter only moves for shared-credential requests;
// token totals accumulate for both credential types. Each request counts
// once no matter how many provider calls it made.
func (g *Governor) RecordUsage(ctx context.Context, userID uuid.UUID, usage generation.TokenUsage, usedShared bool) error {
	if err := g.profiles.AddUsage(ctx, userID, usage.InputTokens, usage.OutputTokens, usedShared); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	logger.FromContextOrDefault(ctx, g.logger).Debug("usage recorded",
		slog.String("user_id", userID.String()),
		slog.Int64("input_tokens", usage.InputTokens),
		slog.Int64("output_tokens", usage.OutputTokens),
		slog.Bool("counted_against_quota", usedShared))
	return nil
}

// Remaining reports how many shared-credential requests the user has
// left today, applying the lazy reset in memory without persisting it.
// Personal-credential users always see the full limit.
func (g *Governor) Remaining(ctx context.Context, userID uuid.UUID) (int, error) {
	profile, err := g.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load usage profile: %w", err)
	}

	if g.vault.Decrypt(profile.EncryptedAPIKey) != "" {
		return g.dailyLimit, nil
	}

	profile.ResetIfStale(g.now())
	remaining := g.dailyLimit - profile.DailyCount
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}
