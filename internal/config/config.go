package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Quota    QuotaConfig    `mapstructure:"quota"    validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication and credential-vault settings.
type AuthConfig struct {
	// JWTSecret verifies bearer tokens issued by the identity provider.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// VaultSecret derives the key that encrypts stored personal API keys.
	VaultSecret string `mapstructure:"vault_secret" validate:"required,min=32"`
}

// LLMConfig contains generative-text provider settings.
type LLMConfig struct {
	// GeminiAPIKey is the shared system credential used for callers
	// without a personal key.
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`

	// ModelName selects the Gemini model for all generation calls.
	ModelName string `mapstructure:"model_name" validate:"required"`

	// RequestTimeout bounds each provider call so a hung request cannot
	// leave a task stuck in processing.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`

	// InputPricePerMillion and OutputPricePerMillion are the rates used
	// for derived cost reporting, in dollars per million tokens.
	InputPricePerMillion  float64 `mapstructure:"input_price_per_million"  validate:"gte=0"`
	OutputPricePerMillion float64 `mapstructure:"output_price_per_million" validate:"gte=0"`
}

// QuotaConfig contains shared-credential usage policy settings.
type QuotaConfig struct {
	// DailyLimit caps generation requests per user per calendar day when
	// the shared credential is used. Personal-credential calls are uncapped.
	DailyLimit int `mapstructure:"daily_limit" validate:"required,gt=0"`
}

// TaskConfig contains background execution settings.
type TaskConfig struct {
	// WorkerCount determines how many concurrent workers process deferred tasks.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// QueueSize determines the buffer size for the in-memory task queue.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`

	// StuckTaskAge is how long a task may sit in processing before the
	// monitor marks it failed.
	StuckTaskAge time.Duration `mapstructure:"stuck_task_age" validate:"required"`

	// StuckTaskCheckInterval is how often the stuck-task monitor runs.
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"required"`
}
