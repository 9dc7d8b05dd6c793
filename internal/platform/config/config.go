package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"newsletter/pkg/email"
	"newsletter/pkg/platform/middleware/metadata"
	pstrings "newsletter/pkg/platform/strings"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full service configuration. Values come from an optional
// YAML file and are then overridden by environment variables.
type Config struct {
	Server     Server      `yaml:"server"`
	Store      Store       `yaml:"store"`
	Redis      RedisConfig `yaml:"redis"`
	Newsletter Newsletter  `yaml:"newsletter"`
	RateLimit  RateLimit   `yaml:"rate_limit"`
	Audit      Audit       `yaml:"audit"`
	LogLevel   string      `yaml:"log_level"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// Store selects the subscription store backend.
type Store struct {
	Backend     string `yaml:"backend"`
	DatabaseURL string `yaml:"database_url"`
}

// RedisConfig holds go-redis connection settings.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	KeyPrefix    string        `yaml:"key_prefix"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Newsletter holds domain settings.
type Newsletter struct {
	// EmailCase is "lower" (addresses compared case-insensitively) or
	// "preserve" (exact comparison).
	EmailCase string `yaml:"email_case"`
}

// RateLimit configures the per-client limiter on mutating routes.
type RateLimit struct {
	Enabled    bool    `yaml:"enabled"`
	RPS        float64 `yaml:"rps"`
	Burst      int     `yaml:"burst"`
	MaxClients int     `yaml:"max_clients"`
	// TrustedProxies lists peers (IPs or CIDRs) whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the socket peer is the client.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Audit configures the audit event stream. No brokers means log-only.
type Audit struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{Backend: BackendMemory},
		Redis: RedisConfig{
			KeyPrefix:    "newsletter",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Newsletter: Newsletter{EmailCase: string(email.CaseLower)},
		RateLimit:  RateLimit{Enabled: true, RPS: 5, Burst: 10, MaxClients: 10000},
		Audit:      Audit{KafkaTopic: "newsletter.audit"},
		LogLevel:   "info",
	}
}

// FromEnv loads the file named by NEWSLETTER_CONFIG (if any) and applies
// environment overrides.
func FromEnv() (Config, error) {
	return Load(os.Getenv("NEWSLETTER_CONFIG"))
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Addr, "NEWSLETTER_ADDR")
	setString(&cfg.Store.Backend, "NEWSLETTER_STORE")
	setString(&cfg.Store.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.Redis.KeyPrefix, "REDIS_KEY_PREFIX")
	setString(&cfg.Newsletter.EmailCase, "NEWSLETTER_EMAIL_CASE")
	setString(&cfg.Audit.KafkaTopic, "AUDIT_KAFKA_TOPIC")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = pstrings.SplitList(v, ",")
	}
	if v := os.Getenv("RATE_LIMIT_TRUSTED_PROXIES"); v != "" {
		cfg.RateLimit.TrustedProxies = pstrings.SplitList(v, ",")
	}
	if v := os.Getenv("AUDIT_KAFKA_BROKERS"); v != "" {
		cfg.Audit.KafkaBrokers = pstrings.SplitList(v, ",")
	}

	var errs []error
	errs = append(errs,
		setDuration(&cfg.Server.RequestTimeout, "NEWSLETTER_REQUEST_TIMEOUT"),
		setDuration(&cfg.Server.ShutdownTimeout, "NEWSLETTER_SHUTDOWN_TIMEOUT"),
		setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE"),
		setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED"),
		setFloat(&cfg.RateLimit.RPS, "RATE_LIMIT_RPS"),
		setInt(&cfg.RateLimit.Burst, "RATE_LIMIT_BURST"),
		setInt(&cfg.RateLimit.MaxClients, "RATE_LIMIT_MAX_CLIENTS"),
	)
	return errors.Join(errs...)
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := email.ParseCasePolicy(c.Newsletter.EmailCase); err != nil {
		return err
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.MaxClients <= 0 {
		return fmt.Errorf("rate limit max clients must be positive")
	}
	if _, err := metadata.ParseTrustedProxies(c.RateLimit.TrustedProxies); err != nil {
		return err
	}
	if len(c.Audit.KafkaBrokers) > 0 && c.Audit.KafkaTopic == "" {
		return fmt.Errorf("AUDIT_KAFKA_TOPIC is required when brokers are set")
	}
	return nil
}

// TrustedProxies returns the parsed trusted proxy prefixes. Call after Validate.
func (c Config) TrustedProxies() []netip.Prefix {
	p, _ := metadata.ParseTrustedProxies(c.RateLimit.TrustedProxies)
	return p
}

// CasePolicy returns the parsed email case policy. Call after Validate.
func (c Config) CasePolicy() email.CasePolicy {
	p, _ := email.ParseCasePolicy(c.Newsletter.EmailCase)
	return p
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
