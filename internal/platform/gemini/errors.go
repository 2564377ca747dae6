package gemini

import (
	"fmt"
	"strings"

	"github.com/studyhall/studyhall-api/internal/generation"
)

// quotaMarkers are the substrings that identify a provider error as rate
// limiting or quota exhaustion. The provider does not expose a stable
// error type for this, so the error text is pattern-matched.
var quotaMarkers = []string{
	"quota",
	"rate limit",
	"rate-limited",
	"too many requests",
	"429",
	"resource_exhausted",
	"resource exhausted",
}

// classifyProviderError converts a raw provider error into one of the
// generation package's tagged errors: ErrQuotaExceeded for rate-limit
// signals, ErrGenerationFailed for everything else.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}

	lower := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %v", generation.ErrQuotaExceeded, err)
		}
	}

	return fmt.Errorf("%w: %v", generation.ErrGenerationFailed, err)
}
