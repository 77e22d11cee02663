package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, STOREGATE_CONFIG env, ./config.yaml, /etc/storegate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. STOREGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/storegate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("STOREGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/storegate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The
// JWT_* and MULTITENANT_* names match the variables the original
// deployment already uses; STOREGATE_* covers the rest.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JWT_ACCESS_SECRET"); v != "" {
		cfg.JWT.AccessSecret = v
	}
	if v := os.Getenv("JWT_REFRESH_SECRET"); v != "" {
		cfg.JWT.RefreshSecret = v
	}
	// JWT_SECRET is the legacy fallback for either secret when the
	// dedicated variable is absent. Validation still rejects a config
	// where both domains end up sharing one secret.
	if v := os.Getenv("JWT_SECRET"); v != "" {
		if cfg.JWT.AccessSecret == "" {
			cfg.JWT.AccessSecret = v
		}
		if cfg.JWT.RefreshSecret == "" {
			cfg.JWT.RefreshSecret = v
		}
	}
	if v := os.Getenv("JWT_ACCESS_EXPIRES"); v != "" {
		cfg.JWT.AccessExpires = v
	}
	if v := os.Getenv("JWT_REFRESH_EXPIRES"); v != "" {
		cfg.JWT.RefreshExpires = v
	}
	if v := os.Getenv("MULTITENANT_BASE_DOMAIN"); v != "" {
		cfg.Tenancy.BaseDomain = strings.ToLower(v)
	}

	if v := os.Getenv("STOREGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STOREGATE_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("STOREGATE_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("STOREGATE_REDIS_URL"); v != "" {
		cfg.Storage.RefreshTokens.Type = "redis"
		cfg.Storage.RefreshTokens.Redis.URL = v
	}
	if v := os.Getenv("STOREGATE_SEED"); v != "" {
		cfg.Storage.Seed = v == "true" || v == "1"
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		name  string
		file  string
		value *string
	}{
		{"jwt.access_secret_file", cfg.JWT.AccessSecretFile, &cfg.JWT.AccessSecret},
		{"jwt.refresh_secret_file", cfg.JWT.RefreshSecretFile, &cfg.JWT.RefreshSecret},
		{"storage.postgres.dsn_file", cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN},
		{"storage.refresh_tokens.redis.url_file", cfg.Storage.RefreshTokens.Redis.URLFile, &cfg.Storage.RefreshTokens.Redis.URL},
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.name, err)
		}
		*ref.value = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
