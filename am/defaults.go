package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "finq.db")

	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})

	// OpenRouter defaults
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini") // Cost-effective default
	v.SetDefault("openrouter.temperature", 0.2)
	v.SetDefault("openrouter.max_tokens", 1000)

	// Local Inference (Ollama) defaults
	v.SetDefault("local_inference.enabled", false)
	v.SetDefault("local_inference.base_url", "http://localhost:11434")
	v.SetDefault("local_inference.model", "llama3.2:3b")
	v.SetDefault("local_inference.timeout_seconds", 120)
	v.SetDefault("local_inference.context_size", 0)

	// NL query defaults
	v.SetDefault("nlquery.history_turns", 5)
	v.SetDefault("nlquery.session_ttl_minutes", 30)
	v.SetDefault("nlquery.requests_per_minute", 30)
	v.SetDefault("nlquery.max_result_rows", 200)

	// Ingest defaults
	v.SetDefault("ingest.drop_dir", "")
	v.SetDefault("ingest.sweep_interval_seconds", 300)
	v.SetDefault("ingest.default_dataset", "inbox")

	// Forecast defaults
	v.SetDefault("forecast.default_periods", 12)
	v.SetDefault("forecast.confidence", 0.8)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Both the FINQ-prefixed and the conventional OpenRouter name are honored
	v.BindEnv("openrouter.api_key", "FINQ_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")

	v.BindEnv("database.path", "FINQ_DATABASE_PATH")
	v.BindEnv("database.dsn", "FINQ_DATABASE_DSN")

	v.BindEnv("local_inference.enabled", "FINQ_LOCAL_INFERENCE_ENABLED")
	v.BindEnv("local_inference.base_url", "FINQ_LOCAL_INFERENCE_BASE_URL")
	v.BindEnv("local_inference.model", "FINQ_LOCAL_INFERENCE_MODEL")
}

// GetDatabasePath returns the configured SQLite path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "finq.db"
	}
	return c.Database.Path
}

// GetServerPort returns the configured port or DefaultServerPort
func (c *Config) GetServerPort() int {
	if c.Server.Port == 0 {
		return DefaultServerPort
	}
	return c.Server.Port
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{"http://localhost", "http://127.0.0.1"}
	}
	return c.Server.AllowedOrigins
}
