package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// UsageProfile holds per-user metering state: the encrypted personal
// provider credential (if any), the shared-credential daily counter and
// the running token ledger. The daily counter resets lazily the first
// time it is touched on a new calendar day; cost is always derived from
// the token totals, never stored.
type UsageProfile struct {
	UserID            uuid.UUID `json:"user_id"`
	EncryptedAPIKey   string    `json:"-"`
	DailyCount        int       `json:"daily_count"`
	LastUsageDate     time.Time `json:"last_usage_date"`
	TotalInputTokens  int64     `json:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens"`
}

// NewUsageProfile creates an empty profile for the given user.
func NewUsageProfile(userID uuid.UUID) *UsageProfile {
	return &UsageProfile{
		UserID:        userID,
		LastUsageDate: time.Now().UTC(),
	}
}

// TotalTokens returns the combined input and output token count.
func (p *UsageProfile) TotalTokens() int64 {
	return p.TotalInputTokens + p.TotalOutputTokens
}

// ResetIfStale zeroes the daily counter when the last recorded usage
// happened on an earlier calendar day than now. Returns true if a reset
// happened. Callers must persist the change under the same lock that
// guarded the read.
func (p *UsageProfile) ResetIfStale(now time.Time) bool {
	last := p.LastUsageDate.UTC()
	today := now.UTC()
	ly, lm, ld := last.Date()
	ty, tm, td := today.Date()
	if ly == ty && lm == tm && ld == td {
		return false
	}

	p.DailyCount = 0
	p.LastUsageDate = today
	return true
}

// TokenPricing holds the per-million-token rates used for cost derivation.
type TokenPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// EstimatedCost computes the running spend from token totals, rounded to
// 4 decimal places. The value is recomputed on every read so it can never
// drift from the ledger.
func EstimatedCost(inputTokens, outputTokens int64, pricing TokenPricing) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * pricing.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000 * pricing.OutputPerMillion
	return math.Round((inputCost+outputCost)*10_000) / 10_000
}

// EstimatedCost derives the profile's running spend under the given pricing.
func (p *UsageProfile) EstimatedCost(pricing TokenPricing) float64 {
	return EstimatedCost(p.TotalInputTokens, p.TotalOutputTokens, pricing)
}
