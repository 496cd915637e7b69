package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Gmail    GmailConfig    `mapstructure:"gmail" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the memory store settings.
// An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains the settings for the bearer tokens presented by the extension.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// LLMConfig contains the language model settings used for memory classification.
// When ModelName is empty the heuristic classifier is used instead.
type LLMConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url" validate:"omitempty,url"`
	ModelName          string `mapstructure:"model_name"`
	PromptTemplatePath string `mapstructure:"prompt_template_path" validate:"required_with=ModelName"`
	MaxRetries         int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds  int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}

// Enabled reports whether a language model has been configured.
func (c LLMConfig) Enabled() bool {
	return c.ModelName != ""
}

// GmailConfig contains the Gmail API client settings.
type GmailConfig struct {
	// Endpoint overrides the Gmail API base URL (used against local fakes)
	Endpoint         string `mapstructure:"endpoint" validate:"omitempty,url"`
	FetchConcurrency int    `mapstructure:"fetch_concurrency" validate:"gte=1,lte=32"`
	CacheSize        int    `mapstructure:"cache_size" validate:"gte=1"`
}

// TaskConfig contains the background task runner settings.
type TaskConfig struct {
	WorkerCount            int `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize              int `mapstructure:"queue_size" validate:"gte=1"`
	RetentionMinutes       int `mapstructure:"retention_minutes" validate:"gte=1"`
	JanitorIntervalSeconds int `mapstructure:"janitor_interval_seconds" validate:"gte=1"`
	ClassifyBatchSize      int `mapstructure:"classify_batch_size" validate:"gte=1,lte=100"`
}

// Retention returns how long terminal tasks remain queryable.
func (c TaskConfig) Retention() time.Duration {
	return time.Duration(c.RetentionMinutes) * time.Minute
}

// JanitorInterval returns how often expired tasks are swept.
func (c TaskConfig) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSeconds) * time.Second
}
