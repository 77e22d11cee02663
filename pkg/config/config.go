// Package config provides unified configuration for the storegate
// backend.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (JWT_* and STOREGATE_* variables)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/salwakit/storegate/pkg/token"
)

// Config holds all configuration for the storegate backend.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	JWT           JWTConfig           `yaml:"jwt"`
	Tenancy       TenancyConfig       `yaml:"tenancy"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 15s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
}

// JWTConfig holds the token signing secrets and lifetimes. Expiry
// strings accept Go durations plus day/week suffixes ("15m", "7d").
type JWTConfig struct {
	AccessSecret      string `yaml:"access_secret"`
	AccessSecretFile  string `yaml:"access_secret_file"` // _file variant for access_secret
	RefreshSecret     string `yaml:"refresh_secret"`
	RefreshSecretFile string `yaml:"refresh_secret_file"` // _file variant for refresh_secret
	AccessExpires     string `yaml:"access_expires"`      // default: "15m"
	RefreshExpires    string `yaml:"refresh_expires"`     // default: "7d"
}

// SignerConfig converts the JWT settings into a token.Config with
// parsed lifetimes.
func (c JWTConfig) SignerConfig() (token.Config, error) {
	accessTTL, err := token.ParseLifetime(c.AccessExpires)
	if err != nil {
		return token.Config{}, err
	}
	refreshTTL, err := token.ParseLifetime(c.RefreshExpires)
	if err != nil {
		return token.Config{}, err
	}
	return token.Config{
		AccessSecret:  c.AccessSecret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}, nil
}

// TenancyConfig holds tenant resolution settings.
type TenancyConfig struct {
	// BaseDomain enables base-domain-relative subdomain parsing
	// (MULTITENANT_BASE_DOMAIN). Empty means first-label parsing.
	BaseDomain string `yaml:"base_domain"`

	// OptionalPaths lists routes allowed to proceed without a resolved
	// tenant (initial registration, platform-admin calls).
	OptionalPaths []string `yaml:"optional_paths"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Seed     bool           `yaml:"seed"` // seed dev fixtures into the memory store
	Postgres PostgresConfig `yaml:"postgres"`

	// RefreshTokens optionally moves refresh token records to a
	// dedicated backend while tenants and users stay in Type.
	RefreshTokens RefreshTokenStorageConfig `yaml:"refresh_tokens"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// RefreshTokenStorageConfig selects the refresh token backend.
type RefreshTokenStorageConfig struct {
	Type  string      `yaml:"type"` // "" (same as storage.type) or "redis"
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL     string `yaml:"url"`
	URLFile string `yaml:"url_file"` // _file variant for url
}

// AuthConfig holds authentication behavior settings.
type AuthConfig struct {
	// PasswordAlgorithm selects the hasher: "bcrypt" (default) or "argon2id".
	PasswordAlgorithm string `yaml:"password_algorithm"`

	// LoginRatePerMinute throttles credential endpoints per remote
	// host. 0 disables limiting.
	LoginRatePerMinute int `yaml:"login_rate_per_minute"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		JWT: JWTConfig{
			AccessExpires:  "15m",
			RefreshExpires: "7d",
		},
		Tenancy: TenancyConfig{
			OptionalPaths: []string{"/v1/auth/register", "/v1/tenants/bootstrap"},
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			PasswordAlgorithm:  "bcrypt",
			LoginRatePerMinute: 30,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
