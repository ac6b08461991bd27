package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "INCIDENT_RADAR_CONFIG"

	defaultTimezone = "UTC"
	defaultSlot     = 30 * time.Minute
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database" toml:"database"`
	Ingestion     IngestionConfig    `yaml:"ingestion" toml:"ingestion"`
	Sources       SourcesConfig      `yaml:"sources" toml:"sources"`
	Decision      DecisionConfig     `yaml:"decision" toml:"decision"`
	AutoPublish   AutoPublishConfig  `yaml:"autoPublish" toml:"autoPublish"`
	Scheduler     SchedulerConfig    `yaml:"scheduler" toml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications" toml:"notifications"`
	HTTP          HTTPConfig         `yaml:"http" toml:"http"`
	Logging       LoggingConfig      `yaml:"logging" toml:"logging"`
}

// DatabaseConfig selects the storage driver; driver is postgres or sqlite.
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// IngestionConfig bounds the work of one run.
type IngestionConfig struct {
	HNMaxItems       int `yaml:"hnMaxItems" toml:"hnMaxItems"`
	DecisionMaxCalls int `yaml:"decisionMaxCalls" toml:"decisionMaxCalls"`
	MaxEventsPerRun  int `yaml:"maxEventsPerRun" toml:"maxEventsPerRun"`
	MaxEventAgeDays  int `yaml:"maxEventAgeDays" toml:"maxEventAgeDays"`
	NVDWindowDays    int `yaml:"nvdWindowDays" toml:"nvdWindowDays"`
}

type SourcesConfig struct {
	RSSFeeds       []string      `yaml:"rssFeeds" toml:"rssFeeds"`
	EnableHN       bool          `yaml:"enableHN" toml:"enableHN"`
	SplitEnabled   bool          `yaml:"splitEnabled" toml:"splitEnabled"`
	NVDAPIKey      string        `yaml:"nvdApiKey" toml:"nvdApiKey"`
	GitHubToken    string        `yaml:"githubToken" toml:"githubToken"`
	RequestTimeout time.Duration `yaml:"requestTimeout" toml:"requestTimeout"`
}

// DecisionConfig picks the duplicate judge. Provider is one of
// openai, anthropic, gemini or http.
type DecisionConfig struct {
	Enabled        bool          `yaml:"enabled" toml:"enabled"`
	Provider       string        `yaml:"provider" toml:"provider"`
	OpenAIAPIKey   string        `yaml:"openaiApiKey" toml:"openaiApiKey"`
	OpenAIBaseURL  string        `yaml:"openaiBaseUrl" toml:"openaiBaseUrl"`
	OpenAIModel    string        `yaml:"openaiModel" toml:"openaiModel"`
	AnthropicKey   string        `yaml:"anthropicApiKey" toml:"anthropicApiKey"`
	AnthropicModel string        `yaml:"anthropicModel" toml:"anthropicModel"`
	GeminiAPIKey   string        `yaml:"geminiApiKey" toml:"geminiApiKey"`
	GeminiModel    string        `yaml:"geminiModel" toml:"geminiModel"`
	HTTPURL        string        `yaml:"httpUrl" toml:"httpUrl"`
	HTTPAPIKey     string        `yaml:"httpApiKey" toml:"httpApiKey"`
	Timeout        time.Duration `yaml:"timeout" toml:"timeout"`
}

type AutoPublishConfig struct {
	TrustedSources []string `yaml:"trustedSources" toml:"trustedSources"`
	MinSeverity    string   `yaml:"minSeverity" toml:"minSeverity"`
}

// SchedulerConfig defines the tick interval and the slot clock zone.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval" toml:"interval"`
	Timezone string         `yaml:"timezone" toml:"timezone"`
	location *time.Location `yaml:"-" toml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken" toml:"botToken"`
	ChatID   string `yaml:"chatId" toml:"chatId"`
}

type HTTPConfig struct {
	Addr       string `yaml:"addr" toml:"addr"`
	AdminToken string `yaml:"adminToken" toml:"adminToken"`
}

// LoggingConfig selects the slog level and handler ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load starts from defaults, decodes the optional YAML or TOML file named by
// INCIDENT_RADAR_CONFIG over them, then applies environment overrides and clamps.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if err := cfg.decodeFile(path); err != nil {
			slog.Warn("config: falling back to defaults", "path", path, "error", err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.normalize()
	return cfg
}

func (c *Config) decodeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.NewDecoder(bytes.NewReader(raw)).Decode(c); err != nil {
			return fmt.Errorf("parse toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(raw, c); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = parsed
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = parsed
			}
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = SplitList(v)
		}
	}

	str("STORAGE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)

	num("MAX_EVENT_AGE_DAYS", &c.Ingestion.MaxEventAgeDays)
	num("HN_MAX_ITEMS", &c.Ingestion.HNMaxItems)
	num("LLM_DEDUPE_MAX_CALLS", &c.Ingestion.DecisionMaxCalls)
	num("INGESTION_MAX_EVENTS_PER_RUN", &c.Ingestion.MaxEventsPerRun)
	num("NVD_WINDOW_DAYS", &c.Ingestion.NVDWindowDays)

	flag("LLM_DEDUPE_ENABLED", &c.Decision.Enabled)
	str("LLM_PROVIDER", &c.Decision.Provider)
	str("OPENAI_API_KEY", &c.Decision.OpenAIAPIKey)
	str("OPENAI_API_BASE_URL", &c.Decision.OpenAIBaseURL)
	str("OPENAI_MODEL", &c.Decision.OpenAIModel)
	str("ANTHROPIC_API_KEY", &c.Decision.AnthropicKey)
	str("ANTHROPIC_MODEL", &c.Decision.AnthropicModel)
	str("GEMINI_API_KEY", &c.Decision.GeminiAPIKey)
	str("GEMINI_MODEL", &c.Decision.GeminiModel)
	str("DECISION_HTTP_URL", &c.Decision.HTTPURL)
	str("DECISION_HTTP_API_KEY", &c.Decision.HTTPAPIKey)

	list("AUTO_PUBLISH_TRUSTED_SOURCES", &c.AutoPublish.TrustedSources)
	str("AUTO_PUBLISH_MIN_SEVERITY", &c.AutoPublish.MinSeverity)

	list("RSS_FEEDS", &c.Sources.RSSFeeds)
	flag("ENABLE_HN_SOURCE", &c.Sources.EnableHN)
	flag("CRON_SOURCE_SPLIT_ENABLED", &c.Sources.SplitEnabled)
	str("NVD_API_KEY", &c.Sources.NVDAPIKey)
	str("GITHUB_API_TOKEN", &c.Sources.GitHubToken)

	str("TELEGRAM_BOT_TOKEN", &c.Notifications.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Notifications.Telegram.ChatID)

	str("ADMIN_API_TOKEN", &c.HTTP.AdminToken)
	str("HTTP_ADDR", &c.HTTP.Addr)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
}

// normalize clamps numeric limits and binds the scheduler timezone.
func (c *Config) normalize() {
	c.Ingestion.HNMaxItems = clamp(c.Ingestion.HNMaxItems, 0, 20)
	c.Ingestion.DecisionMaxCalls = clamp(c.Ingestion.DecisionMaxCalls, 0, 12)
	c.Ingestion.MaxEventsPerRun = clamp(c.Ingestion.MaxEventsPerRun, 5, 120)
	c.Ingestion.MaxEventAgeDays = clamp(c.Ingestion.MaxEventAgeDays, 1, 365)
	c.Ingestion.NVDWindowDays = clamp(c.Ingestion.NVDWindowDays, 1, 120)

	c.Database.Driver = strings.ToLower(c.Database.Driver)
	c.Decision.Provider = strings.ToLower(c.Decision.Provider)

	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = defaultSlot
	}
	// Split batches alternate per 30-minute slot; a longer tick would keep
	// landing on the same batch.
	if c.Sources.SplitEnabled && c.Scheduler.Interval > defaultSlot {
		slog.Warn("config: scheduler interval exceeds the batch slot, clamping",
			"interval", c.Scheduler.Interval, "slot", defaultSlot)
		c.Scheduler.Interval = defaultSlot
	}
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("config: unknown timezone, reverting", "timezone", tz, "fallback", defaultTimezone)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clamp(value, lo, hi int) int {
	return min(max(value, lo), hi)
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:incidentradar.db?_foreign_keys=on"},
		Ingestion: IngestionConfig{
			HNMaxItems:       8,
			DecisionMaxCalls: 6,
			MaxEventsPerRun:  36,
			MaxEventAgeDays:  60,
			NVDWindowDays:    60,
		},
		Sources: SourcesConfig{
			EnableHN:       true,
			SplitEnabled:   true,
			RequestTimeout: 20 * time.Second,
		},
		Decision: DecisionConfig{
			Enabled:        true,
			Provider:       "openai",
			OpenAIBaseURL:  "https://api.openai.com/v1",
			OpenAIModel:    "gpt-5-mini",
			AnthropicModel: "claude-3-5-haiku-latest",
			GeminiModel:    "gemini-1.5-flash",
			Timeout:        30 * time.Second,
		},
		AutoPublish: AutoPublishConfig{
			TrustedSources: []string{"nvd"},
			MinSeverity:    "high",
		},
		Scheduler: SchedulerConfig{Interval: defaultSlot, Timezone: defaultTimezone},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}
