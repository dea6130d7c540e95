package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the linking core. It is loaded once at
// process start and passed explicitly to every component constructor; no
// component mutates it afterwards.
// Tags use mapstructure for Viper unmarshalling.
type Config struct {
	HTTPPort  string `mapstructure:"HTTP_PORT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`

	// Pending link requests stay valid for TokenTTLMin minutes; terminal
	// rows are retained for TokenRetentionMin minutes after that for
	// idempotent replay detection.
	TokenTTLMin       int `mapstructure:"TOKEN_TTL_MIN"`
	TokenRetentionMin int `mapstructure:"TOKEN_RETENTION_MIN"`

	WikiAPIURL      string `mapstructure:"WIKI_API_URL"`
	WikiExchangeURL string `mapstructure:"WIKI_EXCHANGE_URL"`
	WikiConsentURL  string `mapstructure:"WIKI_CONSENT_URL"`
	UserAgent       string `mapstructure:"USER_AGENT"`

	AlertWebhookURL string `mapstructure:"ALERT_WEBHOOK_URL"`

	// ReactorWorkers bounds concurrent membership-event handling.
	ReactorWorkers int `mapstructure:"REACTOR_WORKERS"`
}

// TokenTTL returns the pending-request TTL as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMin) * time.Minute
}

// TokenRetention returns the terminal-row retention window as a duration.
func (c *Config) TokenRetention() time.Duration {
	return time.Duration(c.TokenRetentionMin) * time.Minute
}

// Load reads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/wikilinkd/")
	v.AddConfigPath("$HOME/.wikilinkd")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/wikilinkd")
	v.SetDefault("MONGO_DB_NAME", "wikilinkd")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "wikilinkd")
	v.SetDefault("TOKEN_TTL_MIN", 10)
	v.SetDefault("TOKEN_RETENTION_MIN", 60)
	v.SetDefault("WIKI_API_URL", "https://meta.wikimedia.org/w/api.php")
	v.SetDefault("WIKI_EXCHANGE_URL", "https://meta.wikimedia.org/w/rest.php/oauth2/access_token")
	v.SetDefault("WIKI_CONSENT_URL", "https://meta.wikimedia.org/wiki/Special:OAuth/authorize")
	v.SetDefault("USER_AGENT", "wikilinkd/1.0")
	v.SetDefault("REACTOR_WORKERS", 16)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
