package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	AuthSigningKey string   `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	FirmName                 string        `mapstructure:"FIRM_NAME"`
	FirmTimezone             string        `mapstructure:"FIRM_TIMEZONE"`
	DefaultBookingWeeks      int           `mapstructure:"DEFAULT_BOOKING_WEEKS"`
	MaxBookingWeeks          int           `mapstructure:"MAX_BOOKING_WEEKS"`
	AvailabilityCacheSeconds int           `mapstructure:"AVAILABILITY_CACHE_SECONDS"`
	RequestTimeout           time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	NotifyPollInterval time.Duration `mapstructure:"NOTIFY_POLL_INTERVAL"`
	NotifyBatchSize    int           `mapstructure:"NOTIFY_BATCH_SIZE"`
	WorkerConcurrency  int           `mapstructure:"WORKER_CONCURRENCY"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"FIRM_NAME", "FIRM_TIMEZONE", "DEFAULT_BOOKING_WEEKS", "MAX_BOOKING_WEEKS",
	"AVAILABILITY_CACHE_SECONDS", "REQUEST_TIMEOUT",
	"NOTIFY_POLL_INTERVAL", "NOTIFY_BATCH_SIZE", "WORKER_CONCURRENCY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("RATE_LIMIT_RPS", 2)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("FIRM_NAME", "Our Firm")
	v.SetDefault("FIRM_TIMEZONE", "America/New_York")
	v.SetDefault("DEFAULT_BOOKING_WEEKS", 52)
	v.SetDefault("MAX_BOOKING_WEEKS", 104)
	v.SetDefault("AVAILABILITY_CACHE_SECONDS", 60)
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFY_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("NOTIFY_BATCH_SIZE", 50)
	v.SetDefault("WORKER_CONCURRENCY", 5)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location returns the firm's time zone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.FirmTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks that the configuration is safe to run. Outside development
// AUTH_SIGNING_KEY must be set so that staff routes verify bearer tokens.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
		}
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
		}
	}

	if _, err := time.LoadLocation(c.FirmTimezone); err != nil {
		return fmt.Errorf("FIRM_TIMEZONE %q is not a known time zone: %w", c.FirmTimezone, err)
	}

	if c.DBMaxConns < 1 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must be between 0 and DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DefaultBookingWeeks < 1 {
		return fmt.Errorf("DEFAULT_BOOKING_WEEKS must be positive, got %d", c.DefaultBookingWeeks)
	}
	if c.MaxBookingWeeks < 1 {
		return fmt.Errorf("MAX_BOOKING_WEEKS must be positive, got %d", c.MaxBookingWeeks)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.AvailabilityCacheSeconds < 0 {
		return fmt.Errorf("AVAILABILITY_CACHE_SECONDS must not be negative")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.NotifyPollInterval <= 0 {
		return fmt.Errorf("NOTIFY_POLL_INTERVAL must be positive")
	}
	if c.NotifyBatchSize < 1 || c.WorkerConcurrency < 1 {
		return fmt.Errorf("NOTIFY_BATCH_SIZE and WORKER_CONCURRENCY must be positive")
	}

	return nil
}
