package config

import (
	"fmt"
	"strings"
	"time"

	"calassist/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the CLI needs, read from .env and the environment.
type Config struct {
	LogLevel        string
	PrimaryTimeZone *time.Location

	Google   GoogleConfig
	ICloud   ICloudConfig
	OpenAI   OpenAIConfig
	Insights InsightsConfig

	CacheTTL   time.Duration
	HistoryDir string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CalendarIDs  []string
}

// ICloudConfig configures the optional CalDAV source. It is enabled when a username is set.
type ICloudConfig struct {
	Username     string
	Password     string
	CalendarName string
	Endpoint     string
}

// Enabled reports whether CalDAV credentials were provided.
func (c ICloudConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

type InsightsConfig struct {
	InternalDomains   []string
	MalformedEvents   models.MalformedPolicy
	ContextEventLimit int
	SelfEmail         string
}

// Load reads configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	tzName := v.GetString("PRIMARY_TIMEZONE")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", tzName, err)
	}

	policy, err := models.ParseMalformedPolicy(v.GetString("MALFORMED_EVENTS"))
	if err != nil {
		return nil, fmt.Errorf("invalid MALFORMED_EVENTS: %w", err)
	}

	cfg := &Config{
		LogLevel:        v.GetString("LOG_LEVEL"),
		PrimaryTimeZone: loc,
		Google: GoogleConfig{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
			CalendarIDs:  splitList(v.GetString("GOOGLE_CALENDAR_IDS")),
		},
		ICloud: ICloudConfig{
			Username:     v.GetString("ICLOUD_USERNAME"),
			Password:     v.GetString("ICLOUD_APP_SPECIFIC_PASSWORD"),
			CalendarName: v.GetString("ICLOUD_CALENDAR_NAME"),
			Endpoint:     v.GetString("ICLOUD_ENDPOINT"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      v.GetString("OPENAI_API_KEY"),
			BaseURL:     v.GetString("OPENAI_BASE_URL"),
			Model:       v.GetString("OPENAI_MODEL"),
			MaxTokens:   v.GetInt("OPENAI_MAX_TOKENS"),
			Temperature: float32(v.GetFloat64("OPENAI_TEMPERATURE")),
		},
		Insights: InsightsConfig{
			InternalDomains:   splitList(strings.ToLower(v.GetString("INTERNAL_DOMAINS"))),
			MalformedEvents:   policy,
			ContextEventLimit: v.GetInt("CONTEXT_EVENT_LIMIT"),
			SelfEmail:         v.GetString("SELF_EMAIL"),
		},
		CacheTTL:   time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,
		HistoryDir: v.GetString("HISTORY_DIR"),
	}
	if cfg.Insights.SelfEmail == "" {
		cfg.Insights.SelfEmail = cfg.ICloud.Username
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PRIMARY_TIMEZONE", "UTC")
	v.SetDefault("GOOGLE_CALENDAR_IDS", "primary")
	v.SetDefault("ICLOUD_ENDPOINT", "https://caldav.icloud.com/")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_MAX_TOKENS", 500)
	v.SetDefault("OPENAI_TEMPERATURE", 0.7)
	v.SetDefault("INTERNAL_DOMAINS", "gmail.com,google.com")
	v.SetDefault("MALFORMED_EVENTS", string(models.MalformedSkip))
	v.SetDefault("CONTEXT_EVENT_LIMIT", 5)
	v.SetDefault("CACHE_TTL_SECONDS", 300)
	v.SetDefault("HISTORY_DIR", ".")
}

func splitList(csv string) []string {
	var out []string
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
