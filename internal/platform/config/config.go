package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures the service configuration assembled from the environment so
// main stays lean. Zero values mean "feature not configured" for optional
// backends (Postgres, Redis, Kafka fall back to in-memory wiring).
type Config struct {
	Addr       string
	LogLevel   string
	AdminToken string

	PostgresDSN  string
	RedisURL     string
	KafkaBrokers []string
	AuditTopic   string

	// ApprovalThreshold is the minimum provider confidence for a successful
	// result to approve a request. Policy of the orchestration layer, not the
	// state machine.
	ApprovalThreshold float64

	// ApprovalTTL is how long an approval remains valid. Zero means approvals
	// never expire.
	ApprovalTTL time.Duration

	// SweepInterval and SweepCutoff drive the stuck-request sweeper: requests
	// left PROCESSING longer than the cutoff are force-rejected.
	SweepInterval time.Duration
	SweepCutoff   time.Duration

	// RateLimit caps verification submissions per subject per window.
	// Zero disables the limiter.
	RateLimit       int
	RateLimitWindow time.Duration

	// Certificate signing settings for approval certificates.
	CertSigningKey string
	CertIssuer     string
}

// RedisConfig carries tuning for the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds the service configuration from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("VERIFLOW_ADDR", ":8080"),
		LogLevel:          envOr("VERIFLOW_LOG_LEVEL", "info"),
		AdminToken:        envOr("VERIFLOW_ADMIN_TOKEN", "dev-admin-token-change-in-production"),
		PostgresDSN:       os.Getenv("VERIFLOW_POSTGRES_DSN"),
		RedisURL:          os.Getenv("VERIFLOW_REDIS_URL"),
		AuditTopic:        envOr("VERIFLOW_AUDIT_TOPIC", "veriflow.audit"),
		ApprovalThreshold: envFloat("VERIFLOW_APPROVAL_THRESHOLD", 0.70),
		ApprovalTTL:       envDuration("VERIFLOW_APPROVAL_TTL", 365*24*time.Hour),
		SweepInterval:     envDuration("VERIFLOW_SWEEP_INTERVAL", 5*time.Minute),
		SweepCutoff:       envDuration("VERIFLOW_SWEEP_CUTOFF", 30*time.Minute),
		RateLimit:         envInt("VERIFLOW_RATE_LIMIT", 60),
		RateLimitWindow:   envDuration("VERIFLOW_RATE_LIMIT_WINDOW", time.Minute),
		CertSigningKey:    envOr("VERIFLOW_CERT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		CertIssuer:        envOr("VERIFLOW_CERT_ISSUER", "veriflow"),
	}

	if brokers := os.Getenv("VERIFLOW_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

// Redis assembles the Redis client configuration with pool defaults.
func (c Config) Redis() RedisConfig {
	return RedisConfig{
		URL:          c.RedisURL,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
