package am

import (
	"github.com/teranos/FINQ/db"
	"github.com/teranos/FINQ/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	dialect, err := db.ParseDialect(c.Database.Driver)
	if err != nil {
		return err
	}
	if dialect == db.MySQL && c.Database.DSN == "" {
		return errors.WithHint(
			errors.New("database.dsn is required when database.driver is mysql"),
			"e.g. user:pass@tcp(localhost:3306)/finq")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be within 0..65535 (0 selects the default), got %d", c.Server.Port)
	}

	if c.OpenRouter.Temperature != nil && (*c.OpenRouter.Temperature < 0 || *c.OpenRouter.Temperature > 2) {
		return errors.Newf("openrouter.temperature must be within 0..2, got %f", *c.OpenRouter.Temperature)
	}
	if c.OpenRouter.MaxTokens != nil && *c.OpenRouter.MaxTokens <= 0 {
		return errors.Newf("openrouter.max_tokens must be > 0, got %d", *c.OpenRouter.MaxTokens)
	}

	// Validate local inference configuration only when enabled
	if c.LocalInference.Enabled {
		if c.LocalInference.BaseURL == "" {
			return errors.New("local_inference.base_url cannot be empty when enabled")
		}
		if c.LocalInference.Model == "" {
			return errors.New("local_inference.model cannot be empty when enabled")
		}
		if c.LocalInference.TimeoutSeconds <= 0 {
			return errors.Newf("local_inference.timeout_seconds must be > 0, got %d", c.LocalInference.TimeoutSeconds)
		}
	}

	// Zero history keeps sessions stateless; negative values are invalid
	if c.NLQuery.HistoryTurns < 0 {
		return errors.Newf("nlquery.history_turns must be >= 0, got %d", c.NLQuery.HistoryTurns)
	}
	if c.NLQuery.SessionTTLMinutes < 0 {
		return errors.Newf("nlquery.session_ttl_minutes must be >= 0, got %d", c.NLQuery.SessionTTLMinutes)
	}
	if c.NLQuery.RequestsPerMinute < 0 {
		return errors.Newf("nlquery.requests_per_minute must be >= 0, got %d", c.NLQuery.RequestsPerMinute)
	}
	if c.NLQuery.MaxResultRows < 0 {
		return errors.Newf("nlquery.max_result_rows must be >= 0, got %d", c.NLQuery.MaxResultRows)
	}

	if c.Ingest.SweepIntervalSeconds < 0 {
		return errors.Newf("ingest.sweep_interval_seconds must be >= 0, got %d", c.Ingest.SweepIntervalSeconds)
	}
	if c.Ingest.DropDir != "" && c.Ingest.DefaultDataset == "" {
		return errors.New("ingest.default_dataset cannot be empty when ingest.drop_dir is set")
	}

	if c.Forecast.DefaultPeriods < 0 {
		return errors.Newf("forecast.default_periods must be >= 0, got %d", c.Forecast.DefaultPeriods)
	}
	if c.Forecast.Confidence != 0 && (c.Forecast.Confidence <= 0 || c.Forecast.Confidence >= 1) {
		return errors.Newf("forecast.confidence must be within (0, 1), got %f", c.Forecast.Confidence)
	}

	return nil
}
