// Package config loads client settings from the environment, an optional
// .env file and command-line flags, in increasing priority.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds every tunable of the client.
type Config struct {
	APIURL   string        `env:"TT_API_URL" envDefault:"http://localhost:8000/api/v1"`
	Timeout  time.Duration `env:"TT_TIMEOUT" envDefault:"30s"`
	CACert   string        `env:"TT_CACERT"`
	Insecure bool          `env:"TT_INSECURE"`

	Store       string `env:"TT_STORE" envDefault:"file"`
	StoreDir    string `env:"TT_STORE_DIR"`
	Profile     string `env:"TT_PROFILE" envDefault:"default"`
	RedisURL    string `env:"TT_REDIS_URL"`
	PostgresDSN string `env:"TT_POSTGRES_DSN"`
	Passphrase  string `env:"TT_STORE_PASSPHRASE"`

	LogLevel      string        `env:"TT_LOG_LEVEL" envDefault:"warn"`
	AlertDuration time.Duration `env:"TT_ALERT_DURATION" envDefault:"5s"`
	Language      string        `env:"TT_LANGUAGE" envDefault:"en"`

	LoginMaxFailures int           `env:"TT_LOGIN_MAX_FAILURES" envDefault:"5"`
	LoginWindow      time.Duration `env:"TT_LOGIN_WINDOW" envDefault:"15m"`
	LoginBlock       time.Duration `env:"TT_LOGIN_BLOCK" envDefault:"15m"`
}

// Load reads the given .env files (missing ones are skipped) and parses the
// environment. Variables already set in the environment win over the files.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// BindFlags registers flags on fs that override the loaded values.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.APIURL, "api", c.APIURL, "backend API root")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "per-request timeout")
	fs.StringVar(&c.CACert, "cacert", c.CACert, "CA cert (PEM)")
	fs.BoolVar(&c.Insecure, "insecure", c.Insecure, "skip cert verify (dev)")
	fs.StringVar(&c.Store, "store", c.Store, "session store: file|memory|redis|postgres")
	fs.StringVar(&c.StoreDir, "store-dir", c.StoreDir, "directory of the file store")
	fs.StringVar(&c.Profile, "profile", c.Profile, "session profile for shared stores")
	fs.StringVar(&c.RedisURL, "redis", c.RedisURL, "redis URL")
	fs.StringVar(&c.PostgresDSN, "dsn", c.PostgresDSN, "PostgreSQL DSN")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug|info|warn|error")
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store) {
	case StoreFile, StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: redis store needs TT_REDIS_URL")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: postgres store needs TT_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.AlertDuration < 0 {
		return errors.New("config: negative alert duration")
	}
	if c.LoginMaxFailures < 0 {
		return errors.New("config: negative login failure limit")
	}
	return nil
}
