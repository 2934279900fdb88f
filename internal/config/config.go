// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty until DB is wired.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "pmp-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "pmp-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "1h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h" for 7d).
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// SessionIdleTimeout is how long a session may sit untouched before it expires (e.g. "30m").
	SessionIdleTimeout string `mapstructure:"SESSION_IDLE_TIMEOUT"`
	// SessionAbsoluteTimeout is the hard cap on session age regardless of activity (e.g. "12h").
	SessionAbsoluteTimeout string `mapstructure:"SESSION_ABSOLUTE_TIMEOUT"`
	// SessionMaxConcurrent is the per-user cap on live sessions; the oldest is evicted at the cap.
	SessionMaxConcurrent int `mapstructure:"SESSION_MAX_CONCURRENT"`
	// SessionRetention is how long terminated session rows are kept before the sweeper deletes them (e.g. "24h").
	SessionRetention string `mapstructure:"SESSION_RETENTION"`

	// SweepInterval is the period between reconciliation sweeps (e.g. "5m").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// SweepGrace is how far past its absolute expiry an untouched live session
	// must be before the sweeper deletes it (e.g. "1h").
	SweepGrace string `mapstructure:"SWEEP_GRACE"`

	// PermissionCacheTTL bounds staleness of per-user role/permission lookups (e.g. "10m").
	PermissionCacheTTL string `mapstructure:"PERMISSION_CACHE_TTL"`

	// LoginRateLimit is the max failed login attempts per account+source within LoginRateWindow. 0 disables throttling.
	LoginRateLimit int `mapstructure:"LOGIN_RATE_LIMIT"`
	// LoginRateWindow is the fixed window for login throttling (e.g. "1m").
	LoginRateWindow string `mapstructure:"LOGIN_RATE_WINDOW"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Notifications (optional). When Kafka brokers are set, security events are published to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// NotifyKafkaTopic is the Kafka topic for security notifications (default access-events).
	NotifyKafkaTopic string `mapstructure:"NOTIFY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the notification worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the worker ships events to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "pmp-auth")
	v.SetDefault("JWT_AUDIENCE", "pmp-api")
	v.SetDefault("JWT_ACCESS_TTL", "1h")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	v.SetDefault("SESSION_ABSOLUTE_TIMEOUT", "12h")
	v.SetDefault("SESSION_MAX_CONCURRENT", 3)
	v.SetDefault("SESSION_RETENTION", "24h")
	v.SetDefault("SWEEP_INTERVAL", "5m")
	v.SetDefault("SWEEP_GRACE", "1h")
	v.SetDefault("PERMISSION_CACHE_TTL", "10m")
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", "1m")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "access-events")
	v.SetDefault("KAFKA_GROUP_ID", "access-events-worker")
	v.SetDefault("LOKI_URL", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.SessionMaxConcurrent < 1 {
		return nil, errors.New("config: SESSION_MAX_CONCURRENT must be at least 1")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return c.duration(c.JWTAccessTTL, time.Hour)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return c.duration(c.JWTRefreshTTL, 168*time.Hour)
}

// IdleTimeout parses SessionIdleTimeout. Returns 30m if unset or invalid.
func (c *Config) IdleTimeout() time.Duration {
	return c.duration(c.SessionIdleTimeout, 30*time.Minute)
}

// AbsoluteTimeout parses SessionAbsoluteTimeout. Returns 12h if unset or invalid.
func (c *Config) AbsoluteTimeout() time.Duration {
	return c.duration(c.SessionAbsoluteTimeout, 12*time.Hour)
}

// Retention parses SessionRetention. Returns 24h if unset or invalid.
func (c *Config) Retention() time.Duration {
	return c.duration(c.SessionRetention, 24*time.Hour)
}

// SweepEvery parses SweepInterval. Returns 5m if unset or invalid.
func (c *Config) SweepEvery() time.Duration {
	return c.duration(c.SweepInterval, 5*time.Minute)
}

// Grace parses SweepGrace. Returns 1h if unset or invalid.
func (c *Config) Grace() time.Duration {
	return c.duration(c.SweepGrace, time.Hour)
}

// CacheTTL parses PermissionCacheTTL. Returns 10m if unset or invalid.
func (c *Config) CacheTTL() time.Duration {
	return c.duration(c.PermissionCacheTTL, 10*time.Minute)
}

// RateWindow parses LoginRateWindow. Returns 1m if unset or invalid.
func (c *Config) RateWindow() time.Duration {
	return c.duration(c.LoginRateWindow, time.Minute)
}

func (c *Config) duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if notifications are enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
