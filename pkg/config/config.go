// Package config reads the back office settings from the environment and an
// optional .env file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/langschool/backoffice/pkg/runtime"
)

// Config holds every setting the binaries need.
type Config struct {
	Env         string
	DatabaseURL string
	DB          runtime.Config
	Port        int
	LogLevel    string
	Admin       Admin
}

// Admin holds the credentials of the API gate. The gate is open when no
// username is configured.
type Admin struct {
	Username     string
	Password     string
	PasswordHash string // bcrypt, preferred over Password
}

// Enabled reports whether the gate is configured.
func (a Admin) Enabled() bool {
	return a.Username != ""
}

// LoadEnv loads .env into the process environment outside production.
// A missing file is not an error.
func LoadEnv(files ...string) error {
	env := os.Getenv("GO_ENV")
	if env != "" && env != "development" {
		return nil
	}

	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load reads .env and then the environment.
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, err
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, applying defaults for unset keys.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	defaults := runtime.DefaultConfig()

	dbPort, err := atoi("DB_PORT", get("DB_PORT", strconv.Itoa(defaults.Port)))
	if err != nil {
		return nil, err
	}
	maxConns, err := atoi("DB_MAX_CONNS", get("DB_MAX_CONNS", strconv.Itoa(int(defaults.MaxConns))))
	if err != nil {
		return nil, err
	}
	port, err := atoi("PORT", get("PORT", "5000"))
	if err != nil {
		return nil, err
	}

	password, _ := lookup("DB_PASSWORD")

	cfg := &Config{
		Env:         get("GO_ENV", "development"),
		DatabaseURL: get("DATABASE_URL", ""),
		DB: runtime.Config{
			Host:     get("DB_HOST", defaults.Host),
			Port:     dbPort,
			Database: get("DB_NAME", defaults.Database),
			User:     get("DB_USER", defaults.User),
			Password: password,
			SSLMode:  get("DB_SSLMODE", defaults.SSLMode),
			MaxConns: int32(maxConns),
			MinConns: defaults.MinConns,
		},
		Port:     port,
		LogLevel: strings.ToLower(get("LOG_LEVEL", "info")),
		Admin: Admin{
			Username:     get("ADMIN_USERNAME", ""),
			Password:     get("ADMIN_PASSWORD", ""),
			PasswordHash: get("ADMIN_PASSWORD_HASH", ""),
		},
	}

	if cfg.Admin.Enabled() && cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
		return nil, fmt.Errorf("ADMIN_USERNAME is set but neither ADMIN_PASSWORD nor ADMIN_PASSWORD_HASH is")
	}

	return cfg, nil
}

// Connect opens the pool described by the config. DatabaseURL wins over the
// individual DB_* settings.
func (c *Config) Connect(ctx context.Context) (*runtime.DB, error) {
	if c.DatabaseURL != "" {
		return runtime.ConnectWithURL(ctx, c.DatabaseURL)
	}
	return runtime.Connect(ctx, &c.DB)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func atoi(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, value)
	}
	return n, nil
}
