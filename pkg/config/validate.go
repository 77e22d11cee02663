package config

import (
	"errors"
	"fmt"

	"github.com/salwakit/storegate/pkg/token"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// Both signing secrets are required and must differ: token domain
	// separation relies on disjoint keys.
	if c.JWT.AccessSecret == "" {
		errs = append(errs, fmt.Errorf("jwt.access_secret is required (JWT_ACCESS_SECRET)"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, fmt.Errorf("jwt.refresh_secret is required (JWT_REFRESH_SECRET)"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, fmt.Errorf("jwt.access_secret and jwt.refresh_secret must differ"))
	}

	if _, err := token.ParseLifetime(c.JWT.AccessExpires); err != nil {
		errs = append(errs, fmt.Errorf("jwt.access_expires: %w", err))
	}
	if _, err := token.ParseLifetime(c.JWT.RefreshExpires); err != nil {
		errs = append(errs, fmt.Errorf("jwt.refresh_expires: %w", err))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// storage.refresh_tokens.type must be a known value.
	switch c.Storage.RefreshTokens.Type {
	case "", "redis":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.refresh_tokens.type must be empty or \"redis\", got %q", c.Storage.RefreshTokens.Type))
	}

	if c.Storage.RefreshTokens.Type == "redis" {
		if c.Storage.RefreshTokens.Redis.URL == "" && c.Storage.RefreshTokens.Redis.URLFile == "" {
			errs = append(errs, fmt.Errorf("storage.refresh_tokens.redis.url is required when storage.refresh_tokens.type is \"redis\""))
		}
	}

	// auth.password_algorithm must be a known value.
	switch c.Auth.PasswordAlgorithm {
	case "", "bcrypt", "argon2id":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.password_algorithm must be \"bcrypt\" or \"argon2id\", got %q", c.Auth.PasswordAlgorithm))
	}

	return errors.Join(errs...)
}
