package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(body), DefaultFilePermissions); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Create isolated viper instance without loading user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected default driver sqlite3, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Path != "finq.db" {
		t.Errorf("expected default database path 'finq.db', got %q", cfg.Database.Path)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("expected default port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.NLQuery.HistoryTurns != 5 {
		t.Errorf("expected 5 history turns, got %d", cfg.NLQuery.HistoryTurns)
	}
	if cfg.OpenRouter.Temperature == nil || *cfg.OpenRouter.Temperature != 0.2 {
		t.Errorf("expected default temperature 0.2, got %v", cfg.OpenRouter.Temperature)
	}
	if cfg.Forecast.Confidence != 0.8 {
		t.Errorf("expected default confidence 0.8, got %f", cfg.Forecast.Confidence)
	}
	if cfg.Ingest.DefaultDataset != "inbox" {
		t.Errorf("expected default dataset 'inbox', got %q", cfg.Ingest.DefaultDataset)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[database]
path = "/var/lib/finq/facts.db"

[nlquery]
history_turns = 2

[local_inference]
enabled = true
model = "qwen2.5:7b"
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.Database.Path != "/var/lib/finq/facts.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.NLQuery.HistoryTurns != 2 {
		t.Errorf("nlquery.history_turns = %d", cfg.NLQuery.HistoryTurns)
	}
	if !cfg.LocalInference.Enabled || cfg.LocalInference.Model != "qwen2.5:7b" {
		t.Errorf("local_inference = %+v", cfg.LocalInference)
	}
	// Unset keys keep their defaults
	if cfg.LocalInference.BaseURL != "http://localhost:11434" {
		t.Errorf("local_inference.base_url = %q", cfg.LocalInference.BaseURL)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMergeConfigFiles_LaterWins(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	user := writeConfig(t, t.TempDir(), "[server]\nport = 9000\n\n[ingest]\ndefault_dataset = \"mine\"\n")
	project := writeConfig(t, t.TempDir(), "[server]\nport = 9100\n")

	v := viper.New()
	SetDefaults(v)
	mergeConfigFiles(v, []sourcePath{
		{SourceSystem, filepath.Join(t.TempDir(), "absent.toml")},
		{SourceUser, user},
		{SourceProject, project},
	})

	if got := v.GetInt("server.port"); got != 9100 {
		t.Errorf("server.port = %d, want project value 9100", got)
	}
	if got := v.GetString("ingest.default_dataset"); got != "mine" {
		t.Errorf("ingest.default_dataset = %q, want user value", got)
	}

	if src := configSources["server.port"]; src.Source != SourceProject || src.Path != project {
		t.Errorf("server.port source = %+v", src)
	}
	if src := configSources["ingest.default_dataset"]; src.Source != SourceUser {
		t.Errorf("ingest.default_dataset source = %+v", src)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("HOME", t.TempDir())
	if wd, err := os.Getwd(); err == nil {
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINQ_SERVER_PORT", "8123")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("server.port = %d, want 8123", cfg.Server.Port)
	}
	if cfg.OpenRouter.APIKey != "sk-test" {
		t.Errorf("openrouter.api_key not bound from OPENROUTER_API_KEY")
	}

	again, _ := Load()
	if again != cfg {
		t.Error("Load() should return the cached config")
	}
}

func TestLoad_ProjectConfigFoundFromSubdirectory(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	root := t.TempDir()
	writeConfig(t, root, "[forecast]\ndefault_periods = 3\n")
	sub := filepath.Join(root, "reports", "2024")
	if err := os.MkdirAll(sub, DefaultDirPermissions); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HOME", t.TempDir())
	if wd, err := os.Getwd(); err == nil {
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}
	if err := os.Chdir(sub); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Forecast.DefaultPeriods != 3 {
		t.Errorf("forecast.default_periods = %d, want 3", cfg.Forecast.DefaultPeriods)
	}
}

func TestSettings_MasksSecrets(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("openrouter.api_key", "sk-secret")

	var found bool
	for _, s := range settingsFrom(v, map[string]SourceInfo{
		"openrouter.api_key": {Source: SourceUser, Path: "/home/x/.finq/am.toml"},
	}) {
		if s.Key == "openrouter.api_key" {
			found = true
			if s.Value != "********" {
				t.Errorf("api key not masked: %v", s.Value)
			}
			if s.Source != SourceUser {
				t.Errorf("source = %s", s.Source)
			}
		}
		if s.Key == "nlquery.history_turns" && s.Source != SourceDefault {
			t.Errorf("history_turns source = %s, want default", s.Source)
		}
	}
	if !found {
		t.Error("openrouter.api_key missing from settings")
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{
		Database:   DatabaseConfig{DSN: "root:pw@tcp(db)/finq"},
		OpenRouter: OpenRouterConfig{APIKey: "sk-secret"},
	}
	r := cfg.Redacted()
	if r.OpenRouter.APIKey != "********" || r.Database.DSN != "********" {
		t.Errorf("secrets not masked: %+v", r)
	}
	if cfg.OpenRouter.APIKey != "sk-secret" {
		t.Error("Redacted must not modify the receiver")
	}
	if (Config{}).Redacted().OpenRouter.APIKey != "" {
		t.Error("empty secrets stay empty")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "zero config is valid", config: Config{}},
		{name: "unknown driver", config: Config{Database: DatabaseConfig{Driver: "postgres"}}, wantErr: true},
		{name: "mysql without dsn", config: Config{Database: DatabaseConfig{Driver: "mysql"}}, wantErr: true},
		{name: "mysql with dsn", config: Config{Database: DatabaseConfig{Driver: "mysql", DSN: "u:p@tcp(h)/finq"}}},
		{name: "port out of range", config: Config{Server: ServerConfig{Port: 70000}}, wantErr: true},
		{name: "negative history", config: Config{NLQuery: NLQueryConfig{HistoryTurns: -1}}, wantErr: true},
		{name: "zero history is stateless", config: Config{NLQuery: NLQueryConfig{HistoryTurns: 0}}},
		{name: "negative sweep", config: Config{Ingest: IngestConfig{SweepIntervalSeconds: -5}}, wantErr: true},
		{name: "drop dir without dataset", config: Config{Ingest: IngestConfig{DropDir: "/tmp/drop"}}, wantErr: true},
		{name: "confidence of one", config: Config{Forecast: ForecastConfig{Confidence: 1}}, wantErr: true},
		{name: "confidence within range", config: Config{Forecast: ForecastConfig{Confidence: 0.95}}},
		{
			name:    "local inference enabled without model",
			config:  Config{LocalInference: LocalInferenceConfig{Enabled: true, BaseURL: "http://x", TimeoutSeconds: 1}},
			wantErr: true,
		},
		{
			name:   "local inference disabled ignores fields",
			config: Config{LocalInference: LocalInferenceConfig{Enabled: false}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetters(t *testing.T) {
	var cfg Config
	if cfg.GetServerPort() != DefaultServerPort {
		t.Errorf("GetServerPort() = %d", cfg.GetServerPort())
	}
	if cfg.GetDatabasePath() != "finq.db" {
		t.Errorf("GetDatabasePath() = %q", cfg.GetDatabasePath())
	}
	if len(cfg.GetServerAllowedOrigins()) == 0 {
		t.Error("GetServerAllowedOrigins() should fall back to localhost")
	}
}
