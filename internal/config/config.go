package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	PublicBaseURL      string        `mapstructure:"PUBLIC_BASE_URL"`
	Env                string        `mapstructure:"ENV"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience       string        `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL        string        `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey     string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	StorageDriver      string        `mapstructure:"STORAGE_DRIVER"`
	StorageRoot        string        `mapstructure:"STORAGE_ROOT"`
	StorageSigningKey  string        `mapstructure:"STORAGE_SIGNING_KEY"`
	SignedURLTTL       time.Duration `mapstructure:"SIGNED_URL_TTL"`
	IdentityAdminURL   string        `mapstructure:"IDENTITY_ADMIN_URL"`
	IdentityServiceKey string        `mapstructure:"IDENTITY_SERVICE_KEY"`
	RecordCache        string        `mapstructure:"RECORD_CACHE"`
	RecordCachePath    string        `mapstructure:"RECORD_CACHE_PATH"`
}

var keys = []string{
	"PORT", "PUBLIC_BASE_URL", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"STORAGE_DRIVER", "STORAGE_ROOT", "STORAGE_SIGNING_KEY", "SIGNED_URL_TTL",
	"IDENTITY_ADMIN_URL", "IDENTITY_SERVICE_KEY",
	"RECORD_CACHE", "RECORD_CACHE_PATH",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("STORAGE_ROOT", "./data/blobs")
	v.SetDefault("SIGNED_URL_TTL", "60s")
	v.SetDefault("RECORD_CACHE", "postgres")
	v.SetDefault("RECORD_CACHE_PATH", "./data/records.db")

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

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	// Signed URLs point back at this server; locally that is the listen port.
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:" + cfg.Port
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware trusts X-Dev-User / X-Dev-Role headers.")
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

// Validate checks that the configuration is safe to run. Outside development a
// token verification source and a storage signing key are mandatory; in
// production the public base URL must be routable and the identity admin API
// configured, so signed links work and account deletion reaches the identity.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_JWKS_URL must be set when ENV=%q", c.Env)
		}
		if c.StorageSigningKey == "" {
			return fmt.Errorf("STORAGE_SIGNING_KEY is required when ENV=%q", c.Env)
		}
	}

	switch c.StorageDriver {
	case "memory":
	case "fs":
		if c.StorageRoot == "" {
			return fmt.Errorf("STORAGE_ROOT is required when STORAGE_DRIVER is \"fs\"")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be \"memory\" or \"fs\", got %q", c.StorageDriver)
	}

	switch c.RecordCache {
	case "postgres", "memory":
	case "sqlite":
		if c.RecordCachePath == "" {
			return fmt.Errorf("RECORD_CACHE_PATH is required when RECORD_CACHE is \"sqlite\"")
		}
	default:
		return fmt.Errorf("RECORD_CACHE must be \"postgres\", \"sqlite\", or \"memory\", got %q", c.RecordCache)
	}

	if c.SignedURLTTL <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL must be positive, got %s", c.SignedURLTTL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("PUBLIC_BASE_URL must be an absolute http(s) URL, got %q", c.PublicBaseURL)
		}
	}

	if c.IsProduction() {
		if c.PublicBaseURL == "" || isLoopback(c.PublicBaseURL) {
			return fmt.Errorf("PUBLIC_BASE_URL must name a routable host in production, got %q", c.PublicBaseURL)
		}
		if c.IdentityAdminURL == "" || c.IdentityServiceKey == "" {
			return fmt.Errorf("IDENTITY_ADMIN_URL and IDENTITY_SERVICE_KEY are required in production")
		}
	}
	return nil
}

func isLoopback(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1", "0.0.0.0":
		return true
	}
	return false
}
