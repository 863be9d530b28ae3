package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	BaseURL    string `mapstructure:"BASE_URL"`

	// Remote coworking API.
	APIBaseURL string `mapstructure:"API_BASE_URL"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Opening window: first and last bookable start hours, inclusive.
	OpenHour  int `mapstructure:"OPEN_HOUR"`
	CloseHour int `mapstructure:"CLOSE_HOUR"`

	UnitRateCents int64 `mapstructure:"UNIT_RATE_CENTS"`

	// Booking submission retry policy for transient network failures.
	SubmitMaxAttempts int `mapstructure:"SUBMIT_MAX_ATTEMPTS"`
	SubmitBackoffMS   int `mapstructure:"SUBMIT_BACKOFF_MS"`

	// Background availability refresh for the active (space, date) key.
	RefreshSeconds int `mapstructure:"REFRESH_SECONDS"`

	CookieHashKeyB64  string `mapstructure:"COOKIE_HASH_KEY"`
	CookieBlockKeyB64 string `mapstructure:"COOKIE_BLOCK_KEY"`
	TokenEncKeyB64    string `mapstructure:"TOKEN_ENC_KEY"`

	CookieHashKey  []byte `mapstructure:"-"`
	CookieBlockKey []byte `mapstructure:"-"`
	TokenEncKey    []byte `mapstructure:"-"`
}

// Load reads configuration from the environment, with an optional
// config.yaml for local development.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("API_BASE_URL", "http://localhost:9000")
	v.SetDefault("OPEN_HOUR", 9)
	v.SetDefault("CLOSE_HOUR", 17)
	v.SetDefault("UNIT_RATE_CENTS", 1500)
	v.SetDefault("SUBMIT_MAX_ATTEMPTS", 3)
	v.SetDefault("SUBMIT_BACKOFF_MS", 250)
	v.SetDefault("REFRESH_SECONDS", 30)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("COOKIE_HASH_KEY", "")
	v.SetDefault("COOKIE_BLOCK_KEY", "")
	v.SetDefault("TOKEN_ENC_KEY", "")

	// Missing config file is fine; env vars cover everything.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.OpenHour < 0 || cfg.CloseHour > 23 || cfg.OpenHour > cfg.CloseHour {
		return Config{}, fmt.Errorf("invalid opening window %d-%d", cfg.OpenHour, cfg.CloseHour)
	}
	if cfg.UnitRateCents < 0 {
		return Config{}, fmt.Errorf("UNIT_RATE_CENTS must not be negative")
	}
	if cfg.SubmitMaxAttempts < 1 {
		return Config{}, fmt.Errorf("SUBMIT_MAX_ATTEMPTS must be at least 1")
	}

	var err error
	if cfg.CookieHashKey, err = decodeKey("COOKIE_HASH_KEY", cfg.CookieHashKeyB64); err != nil {
		return Config{}, err
	}
	if cfg.CookieBlockKey, err = decodeKey("COOKIE_BLOCK_KEY", cfg.CookieBlockKeyB64); err != nil {
		return Config{}, err
	}
	if cfg.TokenEncKey, err = decodeKey("TOKEN_ENC_KEY", cfg.TokenEncKeyB64); err != nil {
		return Config{}, err
	}
	if cfg.TokenEncKey != nil && len(cfg.TokenEncKey) != 32 {
		return Config{}, fmt.Errorf("TOKEN_ENC_KEY must decode to 32 bytes (got %d)", len(cfg.TokenEncKey))
	}

	return cfg, nil
}

func (c Config) SubmitBackoff() time.Duration {
	return time.Duration(c.SubmitBackoffMS) * time.Millisecond
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}

// RequireServerKeys checks the key material the web server cannot run
// without. CLI commands that never touch cookies or the database skip this.
func (c Config) RequireServerKeys() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.CookieHashKey == nil || c.CookieBlockKey == nil || c.TokenEncKey == nil {
		return fmt.Errorf("COOKIE_HASH_KEY, COOKIE_BLOCK_KEY and TOKEN_ENC_KEY are required (base64; generate with `deskbook keys`)")
	}
	return nil
}

func decodeKey(name, s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}
