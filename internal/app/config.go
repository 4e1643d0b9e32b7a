package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (TRIBE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (TRIBE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`

	Backend   BackendConfig
	Payment   PaymentConfig
	Catalog   CatalogConfig
	Checkout  CheckoutConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// BackendConfig points at the marketplace backend owning orders and profiles.
type BackendConfig struct {
	BaseURL         string        `default:"http://localhost:8000/api" usage:"Marketplace backend API root" flag:"backend-url"`
	Timeout         time.Duration `default:"15s" usage:"Backend request timeout" flag:"backend-timeout"`
	ProfileCacheTTL time.Duration `default:"1m" usage:"How long resolved buyer profiles are cached" flag:"profile-cache-ttl"`
}

// PaymentConfig holds the payment gateway connection settings.
type PaymentConfig struct {
	BaseURL     string        `default:"https://api.flutterwave.com/v3" usage:"Payment gateway API root" flag:"payment-url"`
	SecretKey   string        `usage:"Payment gateway secret key (TRIBE_PAYMENT_SECRET_KEY)" flag:"payment-secret-key"`
	Currency    string        `default:"NGN" usage:"Charge currency"`
	RedirectURL string        `default:"" usage:"Where the hosted payment page returns the buyer" flag:"payment-redirect-url"`
	Timeout     time.Duration `default:"30s" usage:"Gateway request timeout" flag:"payment-timeout"`
}

// CatalogConfig controls the optional product snapshot used for the stale
// pre-check. With no snapshot files the pre-check is disabled and stale carts
// are only caught at order registration.
type CatalogConfig struct {
	SnapshotFiles []string `usage:"Gzipped JSONL product dumps to load the liveness snapshot from" flag:"catalog-snapshots"`
	Capacity      uint     `default:"1000000" usage:"Expected product count for the snapshot filter" flag:"catalog-capacity"`
}

// CheckoutConfig controls checkout session lifetime.
type CheckoutConfig struct {
	SessionTTL    time.Duration `default:"30m" usage:"Checkout session time to live" flag:"checkout-ttl"`
	SweepInterval time.Duration `default:"5m" usage:"How often expired sessions are swept" flag:"checkout-sweep-interval"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TRIBE",
		Files:     []string{"config.yaml", "/etc/tribe/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set TRIBE_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's TRIBE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
