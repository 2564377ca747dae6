package generation

import "errors"

// Common errors returned by ContentGenerator implementations
var (
	// ErrGenerationFailed is returned when a provider call fails for any
	// general reason (network, transport, malformed request).
	ErrGenerationFailed = errors.New("failed to generate content")

	// ErrQuotaExceeded is returned when the provider signals rate
	// limiting or quota exhaustion. Callers surface it distinctly so the
	// user can wait or supply a personal credential.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrInvalidConfig is returned when the generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptyTopicName is returned when a generation call is made with
	// no topic name to prompt about.
	ErrEmptyTopicName = errors.New("topic name cannot be empty")
)
