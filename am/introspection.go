package am

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/finq/am.toml
	SourceUser        ConfigSource = "user"        // ~/.finq/am.toml
	SourceProject     ConfigSource = "project"     // nearest am.toml
	SourceEnvironment ConfigSource = "environment" // FINQ_* env vars
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // File path or environment variable name
}

// SettingInfo describes one effective setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"`
}

// sensitiveKeys are masked by Settings and Redacted
var sensitiveKeys = map[string]bool{
	"openrouter.api_key": true,
	"database.dsn":       true,
}

// Settings lists every effective setting, sorted by key, with the source
// that set it. Secrets are masked.
func Settings() []SettingInfo {
	mu.Lock()
	v := initViper()
	sources := make(map[string]SourceInfo, len(configSources))
	for k, s := range configSources {
		sources[k] = s
	}
	mu.Unlock()

	return settingsFrom(v, sources)
}

func settingsFrom(v *viper.Viper, sources map[string]SourceInfo) []SettingInfo {
	keys := v.AllKeys()
	sort.Strings(keys)

	settings := make([]SettingInfo, 0, len(keys))
	for _, key := range keys {
		info := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := sources[key]; ok {
			info = si
		}

		envKey := "FINQ_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if os.Getenv(envKey) != "" {
			info = SourceInfo{Source: SourceEnvironment, Path: envKey}
		}

		value := v.Get(key)
		if sensitiveKeys[key] {
			value = mask(v.GetString(key))
		}

		settings = append(settings, SettingInfo{
			Key:        key,
			Value:      value,
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
	return settings
}

// Redacted returns a copy of c with secrets masked, for display
func (c Config) Redacted() Config {
	c.OpenRouter.APIKey = mask(c.OpenRouter.APIKey)
	c.Database.DSN = mask(c.Database.DSN)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
