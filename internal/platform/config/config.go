// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"credgate/pkg/validation"
)

// Config is the full service configuration.
type Config struct {
	Environment string `env:"CREDGATE_ENV" validate:"oneof=dev staging production"`
	LogLevel    string `env:"LOG_LEVEL"`
	Server      Server
	Redis       RedisConfig
	Database    DatabaseConfig
	Platform    PlatformConfig
	Session     SessionConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"CREDGATE_ADDR" validate:"required"`
	ReadTimeout     time.Duration `env:"CREDGATE_READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `env:"CREDGATE_WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"CREDGATE_SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// RedisConfig configures the credential cache backend. An empty URL selects
// the in-process cache, which is only suitable for a single replica.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL" validate:"omitempty,url"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" validate:"gte=1"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" validate:"gte=0"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"`
}

// DatabaseConfig configures authorizer persistence. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" validate:"gte=1"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" validate:"gte=0"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `env:"DATABASE_AUTO_MIGRATE"`
}

// PlatformConfig identifies this service to the open platform as a third-party component.
type PlatformConfig struct {
	BaseURL            string        `env:"PLATFORM_BASE_URL" validate:"required,url"`
	ComponentAppID     string        `env:"COMPONENT_APPID" validate:"required"`
	ComponentAppSecret string        `env:"COMPONENT_APPSECRET" validate:"required"`
	Timeout            time.Duration `env:"PLATFORM_TIMEOUT" validate:"gt=0"`
	RequestsPerSecond  float64       `env:"PLATFORM_RPS" validate:"gt=0"`
	Burst              int           `env:"PLATFORM_BURST" validate:"gte=1"`
	FailureThreshold   int           `env:"PLATFORM_BREAKER_FAILURES" validate:"gte=1"`
	SuccessThreshold   int           `env:"PLATFORM_BREAKER_SUCCESSES" validate:"gte=1"`
	Cooldown           time.Duration `env:"PLATFORM_BREAKER_COOLDOWN" validate:"gt=0"`
	// EventsToken, when set, must accompany relayed notifications in X-Events-Token.
	EventsToken string `env:"PLATFORM_EVENTS_TOKEN"`
}

// SessionConfig holds the session token key material.
type SessionConfig struct {
	Secret string `env:"SESSION_SECRET" validate:"required,min=16"`
	// Revocation enables the per-subject denylist (requires Redis in multi-replica deployments).
	Revocation bool `env:"SESSION_REVOCATION"`
}

// FromEnv builds a Config from environment variables and validates it.
func FromEnv() (Config, error) {
	r := envReader{}
	cfg := Config{
		Environment: r.String("CREDGATE_ENV", "dev"),
		LogLevel:    r.String("LOG_LEVEL", "info"),
		Server: Server{
			Addr:            r.String("CREDGATE_ADDR", ":8080"),
			ReadTimeout:     r.Duration("CREDGATE_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    r.Duration("CREDGATE_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: r.Duration("CREDGATE_SHUTDOWN_TIMEOUT", 20*time.Second),
		},
		Redis: RedisConfig{
			URL:          r.String("REDIS_URL", ""),
			PoolSize:     r.Int("REDIS_POOL_SIZE", 20),
			MinIdleConns: r.Int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.Duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.Duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.Duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:             r.String("DATABASE_URL", ""),
			MaxOpenConns:    r.Int("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    r.Int("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.Duration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     r.Bool("DATABASE_AUTO_MIGRATE", false),
		},
		Platform: PlatformConfig{
			BaseURL:            r.String("PLATFORM_BASE_URL", "https://api.weixin.qq.com"),
			ComponentAppID:     r.String("COMPONENT_APPID", ""),
			ComponentAppSecret: r.String("COMPONENT_APPSECRET", ""),
			Timeout:            r.Duration("PLATFORM_TIMEOUT", 5*time.Second),
			RequestsPerSecond:  r.Float("PLATFORM_RPS", 20),
			Burst:              r.Int("PLATFORM_BURST", 10),
			FailureThreshold:   r.Int("PLATFORM_BREAKER_FAILURES", 5),
			SuccessThreshold:   r.Int("PLATFORM_BREAKER_SUCCESSES", 2),
			Cooldown:           r.Duration("PLATFORM_BREAKER_COOLDOWN", 30*time.Second),
			EventsToken:        r.String("PLATFORM_EVENTS_TOKEN", ""),
		},
		Session: SessionConfig{
			Secret:     r.String("SESSION_SECRET", ""),
			Revocation: r.Bool("SESSION_REVOCATION", false),
		},
	}
	if r.err != nil {
		return Config{}, r.err
	}
	if err := validation.Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envReader records the first parse failure so FromEnv can report it once.
type envReader struct {
	err error
}

func (r *envReader) String(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (r *envReader) Int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *envReader) Float(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

func (r *envReader) Bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *envReader) Duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *envReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("parse %s: %w", key, err)
	}
}
