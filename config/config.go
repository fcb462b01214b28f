package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	YouTube   YouTubeConfig   `mapstructure:"youtube"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Mail      MailConfig      `mapstructure:"mail"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogLevel       string   `mapstructure:"log_level"`
	LogFormat      string   `mapstructure:"log_format"` // "console" or "json"
}

// YouTubeConfig holds YouTube Data API configuration
type YouTubeConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	RegionCode        string  `mapstructure:"region_code"`
	RelevanceLanguage string  `mapstructure:"relevance_language"`
	CategoryID        string  `mapstructure:"category_id"`
	QuerySuffix       string  `mapstructure:"query_suffix"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// GeminiConfig holds model selection and sampling parameters
type GeminiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	TopK            float32       `mapstructure:"top_k"`
	TopP            float32       `mapstructure:"top_p"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL        string        `mapstructure:"redis_url"`
	VideoTTL        time.Duration `mapstructure:"video_ttl"`
	SearchTTL       time.Duration `mapstructure:"search_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DatabaseConfig selects the SQL backend
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

// QuotaConfig holds the zone the daily search quota resets in
type QuotaConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone
func (q QuotaConfig) Location() (*time.Location, error) {
	return time.LoadLocation(q.Timezone)
}

// AuthConfig holds session and token lifetimes
type AuthConfig struct {
	SessionTTL           time.Duration `mapstructure:"session_ttl"`
	VerificationTTL      time.Duration `mapstructure:"verification_ttl"`
	ResetTTL             time.Duration `mapstructure:"reset_ttl"`
	RequireVerifiedEmail bool          `mapstructure:"require_verified_email"`
	CronSecret           string        `mapstructure:"cron_secret"`
}

// MailConfig selects how verification and reset links are delivered
type MailConfig struct {
	Type         string        `mapstructure:"type"` // "log" or "webhook"
	WebhookURL   string        `mapstructure:"webhook_url"`
	WebhookToken string        `mapstructure:"webhook_token"`
	AppBaseURL   string        `mapstructure:"app_base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BatchSchedule string        `mapstructure:"batch_schedule"`
	ResetSchedule string        `mapstructure:"reset_schedule"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	StaleJobAge   time.Duration `mapstructure:"stale_job_age"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/recipetube/")
	}

	// RECIPETUBE_YOUTUBE_API_KEY -> youtube.api_key
	v.SetEnvPrefix("RECIPETUBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs one so
// that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "console")

	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.region_code", "jp")
	v.SetDefault("youtube.relevance_language", "ja")
	v.SetDefault("youtube.category_id", "26")
	v.SetDefault("youtube.query_suffix", "レシピ 料理")
	v.SetDefault("youtube.requests_per_second", 5)
	v.SetDefault("youtube.burst", 10)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.top_k", 40)
	v.SetDefault("gemini.top_p", 0.95)
	v.SetDefault("gemini.max_output_tokens", 1024)
	v.SetDefault("gemini.timeout", "60s")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.video_ttl", "1h")
	v.SetDefault("cache.search_ttl", "5m")
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "recipetube.db")

	v.SetDefault("quota.timezone", "UTC")

	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.verification_ttl", "24h")
	v.SetDefault("auth.reset_ttl", "1h")
	v.SetDefault("auth.require_verified_email", true)
	v.SetDefault("auth.cron_secret", "")

	v.SetDefault("mail.type", "log")
	v.SetDefault("mail.webhook_url", "")
	v.SetDefault("mail.webhook_token", "")
	v.SetDefault("mail.app_base_url", "http://localhost:5173")
	v.SetDefault("mail.timeout", "10s")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.batch_schedule", "@hourly")
	v.SetDefault("jobs.reset_schedule", "0 0 * * *")
	v.SetDefault("jobs.initial_delay", "1s")
	v.SetDefault("jobs.stale_job_age", "168h")

	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.YouTube.APIKey == "" {
		return fmt.Errorf("YouTube API key is required (set RECIPETUBE_YOUTUBE_API_KEY)")
	}

	if config.Gemini.APIKey == "" {
		return fmt.Errorf("Gemini API key is required (set RECIPETUBE_GEMINI_API_KEY)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Cache.VideoTTL <= 0 || config.Cache.SearchTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	if config.Database.Driver != "sqlite" && config.Database.Driver != "postgres" {
		return fmt.Errorf("database driver must be 'sqlite' or 'postgres', got: %s", config.Database.Driver)
	}

	if config.Database.DSN == "" {
		return fmt.Errorf("database DSN is required (set RECIPETUBE_DATABASE_DSN)")
	}

	if _, err := config.Quota.Location(); err != nil {
		return fmt.Errorf("unknown quota timezone %q", config.Quota.Timezone)
	}

	switch config.Mail.Type {
	case "log":
	case "webhook":
		if config.Mail.WebhookURL == "" {
			return fmt.Errorf("webhook URL is required when mail type is 'webhook'")
		}
	default:
		return fmt.Errorf("mail type must be 'log' or 'webhook', got: %s", config.Mail.Type)
	}

	if config.Server.LogFormat != "console" && config.Server.LogFormat != "json" {
		return fmt.Errorf("log format must be 'console' or 'json', got: %s", config.Server.LogFormat)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("ratelimit.per_ip must not be negative")
	}

	return nil
}
