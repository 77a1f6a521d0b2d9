package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQL    = "sql"
	StoreRemote = "remote"

	DistanceGeo  = "geo"
	DistanceStub = "stub"
)

// Config holds the runtime settings of the marketplace binary.
type Config struct {
	Addr string

	DBDriver string
	DBDSN    string

	Store          string
	RemoteURL      string
	RemoteToken    string
	RemoteRetryMax int

	CacheEnabled bool
	CacheTTL     time.Duration

	// SessionIdleTimeout discards sessions unused for this long. Zero keeps
	// sessions until they are closed.
	SessionIdleTimeout time.Duration

	LogLevel string
	LogFile  string

	Locale     string
	Distance   string
	BcryptCost int
}

// Default returns the settings used when no environment overrides are present.
func Default() *Config {
	return &Config{
		Addr:               ":8080",
		DBDriver:           "sqlite3",
		DBDSN:              "marketplace.db",
		Store:              StoreSQL,
		RemoteRetryMax:     0,
		CacheEnabled:       true,
		CacheTTL:           15 * time.Minute,
		SessionIdleTimeout: 24 * time.Hour,
		LogLevel:           "info",
		Locale:             "en",
		Distance:           DistanceGeo,
		BcryptCost:         10,
	}
}

// Load reads envFile (when present) into the process environment and builds
// the configuration from MARKETPLACE_* variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Addr, "MARKETPLACE_ADDR")
	setString(&c.DBDriver, "MARKETPLACE_DB_DRIVER")
	setString(&c.DBDSN, "MARKETPLACE_DB_DSN")
	setString(&c.Store, "MARKETPLACE_STORE")
	setString(&c.RemoteURL, "MARKETPLACE_REMOTE_URL")
	setString(&c.RemoteToken, "MARKETPLACE_REMOTE_TOKEN")
	setString(&c.LogLevel, "MARKETPLACE_LOG_LEVEL")
	setString(&c.LogFile, "MARKETPLACE_LOG_FILE")
	setString(&c.Locale, "MARKETPLACE_LOCALE")
	setString(&c.Distance, "MARKETPLACE_DISTANCE")

	if v, ok := lookup("MARKETPLACE_REMOTE_RETRY_MAX"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MARKETPLACE_REMOTE_RETRY_MAX %q: %w", v, err)
		}
		c.RemoteRetryMax = n
	}
	if v, ok := lookup("MARKETPLACE_CACHE_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MARKETPLACE_CACHE_ENABLED %q: %w", v, err)
		}
		c.CacheEnabled = b
	}
	if v, ok := lookup("MARKETPLACE_CACHE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MARKETPLACE_CACHE_TTL %q: %w", v, err)
		}
		c.CacheTTL = d
	}
	if v, ok := lookup("MARKETPLACE_SESSION_IDLE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MARKETPLACE_SESSION_IDLE_TIMEOUT %q: %w", v, err)
		}
		c.SessionIdleTimeout = d
	}
	if v, ok := lookup("MARKETPLACE_BCRYPT_COST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MARKETPLACE_BCRYPT_COST %q: %w", v, err)
		}
		c.BcryptCost = n
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQL:
	case StoreRemote:
		if c.RemoteURL == "" {
			return fmt.Errorf("MARKETPLACE_REMOTE_URL is required when MARKETPLACE_STORE=remote")
		}
	default:
		return fmt.Errorf("unsupported store %q", c.Store)
	}

	switch c.DBDriver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("MARKETPLACE_DB_DSN is required")
	}

	switch c.Distance {
	case DistanceGeo, DistanceStub:
	default:
		return fmt.Errorf("unsupported distance estimator %q", c.Distance)
	}

	if c.RemoteRetryMax < 0 {
		return fmt.Errorf("MARKETPLACE_REMOTE_RETRY_MAX must not be negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("MARKETPLACE_CACHE_TTL must be positive")
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("MARKETPLACE_SESSION_IDLE_TIMEOUT must not be negative")
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
