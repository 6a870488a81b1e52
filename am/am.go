// Package am loads FINQ configuration ("am" as in "I am configured as").
//
// Values come from, in increasing precedence: built-in defaults,
// /etc/finq/am.toml, ~/.finq/am.toml, the nearest am.toml found walking up
// from the working directory, and FINQ_* environment variables.
package am

// Config represents the FINQ configuration
type Config struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	Server         ServerConfig         `mapstructure:"server"`
	OpenRouter     OpenRouterConfig     `mapstructure:"openrouter"`
	LocalInference LocalInferenceConfig `mapstructure:"local_inference"`
	NLQuery        NLQueryConfig        `mapstructure:"nlquery"`
	Ingest         IngestConfig         `mapstructure:"ingest"`
	Forecast       ForecastConfig       `mapstructure:"forecast"`
}

// DatabaseConfig selects the fact store backend
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite3 (default) or mysql
	Path   string `mapstructure:"path"`   // SQLite file
	DSN    string `mapstructure:"dsn"`    // MySQL DSN, e.g. user:pass@tcp(host:3306)/finq
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Server port constants
const (
	DefaultServerPort = 8000
)

// OpenRouterConfig configures OpenRouter.ai API access
type OpenRouterConfig struct {
	APIKey      string   `mapstructure:"api_key"`     // OpenRouter API key
	Model       string   `mapstructure:"model"`       // Default model (e.g., "openai/gpt-4o-mini")
	Temperature *float64 `mapstructure:"temperature"` // Sampling temperature (nil = default 0.2)
	MaxTokens   *int     `mapstructure:"max_tokens"`  // Maximum tokens per request (nil = default 1000)
}

// LocalInferenceConfig configures local model inference (Ollama, LocalAI, etc.)
type LocalInferenceConfig struct {
	Enabled        bool   `mapstructure:"enabled"`         // Use local inference instead of OpenRouter
	BaseURL        string `mapstructure:"base_url"`        // e.g., "http://localhost:11434" for Ollama
	Model          string `mapstructure:"model"`           // e.g., "llama3.2:3b"
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // Request timeout in seconds
	ContextSize    int    `mapstructure:"context_size"`    // Context window (0 = model default)
}

// NLQueryConfig configures natural-language question answering
type NLQueryConfig struct {
	HistoryTurns      int `mapstructure:"history_turns"`       // Conversation turns kept per session
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes"` // Idle time before a session is dropped
	RequestsPerMinute int `mapstructure:"requests_per_minute"` // Model call budget (0 = unlimited)
	MaxResultRows     int `mapstructure:"max_result_rows"`     // Rows passed to the summary prompt
}

// IngestConfig configures drop-directory ingestion
type IngestConfig struct {
	DropDir              string `mapstructure:"drop_dir"`               // Empty disables the watcher
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"` // Periodic re-scan (0 = events only)
	DefaultDataset       string `mapstructure:"default_dataset"`
}

// ForecastConfig configures the trend forecast
type ForecastConfig struct {
	DefaultPeriods int     `mapstructure:"default_periods"` // Months projected when not requested
	Confidence     float64 `mapstructure:"confidence"`      // Band coverage, e.g. 0.8
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
