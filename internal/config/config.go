package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/utafrali/checkoutcore/internal/pricing"
	pkgconfig "github.com/utafrali/checkoutcore/pkg/config"
)

// Store, cart and payment backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	PaymentMock = "mock"
	PaymentHTTP = "http"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"CHECKOUT_HTTP_PORT" envDefault:"8004"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Per-session rate limiting on /api/v1; zero RPS disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Backends
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	CartBackend  string `env:"CART_BACKEND" envDefault:"memory"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"checkout"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"checkout_secret"`
	PostgresDB   string `env:"CHECKOUT_DB_NAME" envDefault:"checkout_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CartTTL       time.Duration `env:"CART_TTL" envDefault:"168h"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"checkoutcore"`

	// Payment
	PaymentProvider       string   `env:"PAYMENT_PROVIDER" envDefault:"mock"`
	PaymentURL            string   `env:"PAYMENT_URL" envDefault:"http://localhost:8005"`
	PaymentDeclinedTokens []string `env:"PAYMENT_DECLINED_TOKENS" envSeparator:","`

	// Circuit breaker for the payment provider
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Checkout step timeouts
	PaymentTimeout      time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"10s"`
	CompensationTimeout time.Duration `env:"COMPENSATION_TIMEOUT" envDefault:"10s"`

	// Pricing
	PricingRules  string `env:"PRICING_RULES"`
	PricingPolicy string `env:"PRICING_POLICY" envDefault:"sum"`

	// Signed identity; empty trusts the identity headers as sent.
	IdentitySecret string `env:"IDENTITY_TOKEN_SECRET"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be memory or postgres, got %q", c.StoreBackend)
	}
	switch c.CartBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("CART_BACKEND must be memory or redis, got %q", c.CartBackend)
	}
	if c.StoreBackend == BackendPostgres {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	}
	if c.CartBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	switch c.PaymentProvider {
	case PaymentMock:
	case PaymentHTTP:
		if _, err := url.ParseRequestURI(c.PaymentURL); err != nil {
			return fmt.Errorf("invalid PAYMENT_URL %q: %w", c.PaymentURL, err)
		}
	default:
		return fmt.Errorf("PAYMENT_PROVIDER must be mock or http, got %q", c.PaymentProvider)
	}
	if c.PaymentTimeout < 0 || c.CompensationTimeout < 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT and COMPENSATION_TIMEOUT must not be negative")
	}
	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1) {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative and RATE_LIMIT_BURST must be positive")
	}
	if c.CartTTL < 0 {
		return fmt.Errorf("CART_TTL must not be negative")
	}
	if _, err := pricing.ParsePolicy(c.PricingPolicy); err != nil {
		return fmt.Errorf("invalid PRICING_POLICY: %w", err)
	}
	if _, err := pricing.ParseRules(c.PricingRules); err != nil {
		return fmt.Errorf("invalid PRICING_RULES: %w", err)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// Calculator builds the discount calculator from PRICING_RULES and PRICING_POLICY.
func (c *Config) Calculator() (*pricing.Calculator, error) {
	policy, err := pricing.ParsePolicy(c.PricingPolicy)
	if err != nil {
		return nil, err
	}
	rules, err := pricing.ParseRules(c.PricingRules)
	if err != nil {
		return nil, err
	}
	return pricing.NewCalculator(policy, rules...), nil
}
