package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/kiseto/order-intake/internal/zipcloud"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDERS_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (ORDERS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	SecureCookie bool   `default:"false" usage:"Mark the session cookie Secure (requires HTTPS)" flag:"secure-cookie"`
	Auth         AuthConfig
	Session      SessionConfig
	Zipcloud     ZipcloudConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// AuthConfig is the fixed credential pair gating the order form.
type AuthConfig struct {
	UserID   string `usage:"Login user id (ORDERS_AUTH_USER_ID)" flag:"auth-user-id"`
	Password string `usage:"Login password (ORDERS_AUTH_PASSWORD)" flag:"auth-password"`
}

// SessionConfig controls session lifetime.
type SessionConfig struct {
	TTL time.Duration `default:"30m" usage:"Idle session lifetime"`
}

// ZipcloudConfig controls the postal-code lookup client.
type ZipcloudConfig struct {
	BaseURL string        `usage:"Zipcloud API base URL" flag:"zipcloud-base-url"`
	Timeout time.Duration `default:"5s" usage:"Zipcloud request timeout" flag:"zipcloud-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDERS",
		Files:     []string{"config.yaml", "/etc/order-intake/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDERS_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Auth.UserID == "" || cfg.Auth.Password == "" {
		return nil, errors.New("login credentials are required: set ORDERS_AUTH_USER_ID and ORDERS_AUTH_PASSWORD")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's ORDERS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Zipcloud.BaseURL == "" {
		c.Zipcloud.BaseURL = zipcloud.DefaultBaseURL
	}
}
