package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/modelconfig"
)

const (
	configPathEnv     = "POST_TRANSLATOR_CONFIG"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	redisAddrEnv      = "REDIS_ADDR"
	logLevelEnv       = "LOG_LEVEL"
	presetModelEnv    = "PRESET_MODEL"
	openAIKeyEnv      = "OPENAI_API_KEY"
	xaiKeyEnv         = "XAI_API_KEY"
	deepSeekKeyEnv    = "DEEPSEEK_API_KEY"
	customKeyEnv      = "CUSTOM_API_KEY"
	httpAddrEnv       = "HTTP_ADDR"
	webhookURLEnv     = "NOTIFY_WEBHOOK_URL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging" toml:"logging"`
	Database      DatabaseConfig     `yaml:"database" toml:"database"`
	Redis         RedisConfig        `yaml:"redis" toml:"redis"`
	HTTP          HTTPConfig         `yaml:"http" toml:"http"`
	Translator    TranslatorConfig   `yaml:"translator" toml:"translator"`
	Queue         QueueConfig        `yaml:"queue" toml:"queue"`
	Janitor       JanitorConfig      `yaml:"janitor" toml:"janitor"`
	Notifications NotificationConfig `yaml:"notifications" toml:"notifications"`

	// Warnings collects non-fatal problems found while loading.
	Warnings []string `yaml:"-" toml:"-"`
}

// LoggingConfig selects the console level and the translation event log file.
type LoggingConfig struct {
	Level        string `yaml:"level" toml:"level"`
	EventLogPath string `yaml:"event_log_path" toml:"event_log_path"`
}

// DatabaseConfig describes the SQL backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// RedisConfig enables the shared Redis rate counter when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
}

// HTTPConfig configures the REST surface.
type HTTPConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// TranslatorConfig mirrors the plugin settings of the hosting forum.
type TranslatorConfig struct {
	Enabled                bool          `yaml:"enabled" toml:"enabled"`
	PresetModel            string        `yaml:"preset_model" toml:"preset_model"`
	APIKeys                APIKeysConfig `yaml:"api_keys" toml:"api_keys"`
	Custom                 CustomConfig  `yaml:"custom" toml:"custom"`
	RateLimitPerMinute     int           `yaml:"rate_limit_per_minute" toml:"rate_limit_per_minute"`
	MaxContentLength       int           `yaml:"max_content_length" toml:"max_content_length"`
	TranslateTitle         bool          `yaml:"translate_title" toml:"translate_title"`
	AutoTranslateLanguages string        `yaml:"auto_translate_languages" toml:"auto_translate_languages"`
	DefaultMaxOutputTokens int           `yaml:"default_max_output_tokens" toml:"default_max_output_tokens"`
	RequestTimeout         time.Duration `yaml:"request_timeout" toml:"request_timeout"`

	languages []string
}

// APIKeysConfig holds one key per preset provider.
type APIKeysConfig struct {
	OpenAI   string `yaml:"openai" toml:"openai"`
	XAI      string `yaml:"xai" toml:"xai"`
	DeepSeek string `yaml:"deepseek" toml:"deepseek"`
}

// CustomConfig describes an OpenAI-compatible provider outside the preset table.
type CustomConfig struct {
	Provider        string `yaml:"provider" toml:"provider"`
	BaseURL         string `yaml:"base_url" toml:"base_url"`
	ModelName       string `yaml:"model_name" toml:"model_name"`
	MaxTokens       int    `yaml:"max_tokens" toml:"max_tokens"`
	MaxOutputTokens int    `yaml:"max_output_tokens" toml:"max_output_tokens"`
	APIKey          string `yaml:"api_key" toml:"api_key"`
}

// QueueConfig sizes the worker pool.
type QueueConfig struct {
	Workers    int           `yaml:"workers" toml:"workers"`
	Buffer     int           `yaml:"buffer" toml:"buffer"`
	JobTimeout time.Duration `yaml:"job_timeout" toml:"job_timeout"`
}

// JanitorConfig defines how often expired rate counters are purged.
type JanitorConfig struct {
	Interval time.Duration `yaml:"interval" toml:"interval"`
}

// NotificationConfig encapsulates outbound realtime channels.
type NotificationConfig struct {
	HubBuffer int           `yaml:"hub_buffer" toml:"hub_buffer"`
	Webhook   WebhookConfig `yaml:"webhook" toml:"webhook"`
}

// WebhookConfig forwards notifications to the host message bus.
type WebhookConfig struct {
	URL     string        `yaml:"url" toml:"url"`
	Token   string        `yaml:"token" toml:"token"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// AutoLanguages returns the validated auto-translate language list.
func (t TranslatorConfig) AutoLanguages() []string {
	return append([]string(nil), t.languages...)
}

// ModelSettings adapts the translator section to the model resolver.
func (t TranslatorConfig) ModelSettings() modelconfig.Settings {
	return modelconfig.Settings{
		APIKeys: map[modelconfig.Provider]string{
			modelconfig.ProviderOpenAI:   t.APIKeys.OpenAI,
			modelconfig.ProviderXAI:      t.APIKeys.XAI,
			modelconfig.ProviderDeepSeek: t.APIKeys.DeepSeek,
		},
		Custom: modelconfig.CustomSettings{
			Provider:        t.Custom.Provider,
			BaseURL:         t.Custom.BaseURL,
			ModelName:       t.Custom.ModelName,
			MaxTokens:       t.Custom.MaxTokens,
			MaxOutputTokens: t.Custom.MaxOutputTokens,
			APIKey:          t.Custom.APIKey,
		},
		DefaultMaxOutputTokens: t.DefaultMaxOutputTokens,
	}
}

// Load reads the configuration file (YAML, or TOML by extension) over the
// defaults and applies environment overrides. An empty path falls back to
// POST_TRANSLATOR_CONFIG; no path at all means defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(path, raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalizeLanguages()

	return cfg, nil
}

func decode(path string, raw []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(raw), cfg)
		return err
	}
	return yaml.Unmarshal(raw, cfg)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(presetModelEnv); v != "" {
		c.Translator.PresetModel = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.Translator.APIKeys.OpenAI = v
	}

	if v := os.Getenv(xaiKeyEnv); v != "" {
		c.Translator.APIKeys.XAI = v
	}

	if v := os.Getenv(deepSeekKeyEnv); v != "" {
		c.Translator.APIKeys.DeepSeek = v
	}

	if v := os.Getenv(customKeyEnv); v != "" {
		c.Translator.Custom.APIKey = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Notifications.Webhook.URL = v
	}
}

func (c *Config) normalizeLanguages() {
	c.Translator.languages = nil
	seen := map[string]bool{}
	for _, part := range strings.Split(c.Translator.AutoTranslateLanguages, ",") {
		code := strings.TrimSpace(part)
		if code == "" || seen[code] {
			continue
		}
		if !domain.ValidLanguageCode(code) {
			c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring invalid auto-translate language %q", code))
			continue
		}
		seen[code] = true
		c.Translator.languages = append(c.Translator.languages, code)
	}
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", EventLogPath: "log/translation.log"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/post_translator.db"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Translator: TranslatorConfig{
			Enabled:                true,
			PresetModel:            "gpt-4o-mini",
			RateLimitPerMinute:     60,
			MaxContentLength:       10000,
			TranslateTitle:         true,
			AutoTranslateLanguages: "en",
			DefaultMaxOutputTokens: 8000,
			RequestTimeout:         60 * time.Second,
		},
		Queue:   QueueConfig{Workers: 4, Buffer: 256, JobTimeout: 60 * time.Second},
		Janitor: JanitorConfig{Interval: time.Minute},
		Notifications: NotificationConfig{
			HubBuffer: 16,
			Webhook:   WebhookConfig{Timeout: 5 * time.Second},
		},
	}
}
