package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the portal server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Jobs     JobsConfig
	Auth     AuthConfig
	Links    LinksConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

// JobsConfig points at the job-execution system's REST API.
type JobsConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

// LinksConfig holds the bases for links handed to the front end.
type LinksConfig struct {
	WebportalBaseURL string
	GrafanaURL       string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("PORTAL_PORT", 8080),
			Env:             envString("PORTAL_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Jobs: JobsConfig{
			BaseURL:  strings.TrimRight(os.Getenv("JOBS_API_URL"), "/"),
			Timeout:  envDuration("JOBS_API_TIMEOUT", 30*time.Second),
			CacheTTL: envDuration("JOBS_CACHE_TTL", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		},
		Links: LinksConfig{
			WebportalBaseURL: strings.TrimRight(os.Getenv("WEBPORTAL_BASE_URL"), "/"),
			GrafanaURL:       strings.TrimRight(os.Getenv("GRAFANA_URL"), "/"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Jobs.BaseURL == "" {
		return fmt.Errorf("JOBS_API_URL is required")
	}
	if !strings.HasPrefix(c.Jobs.BaseURL, "http://") && !strings.HasPrefix(c.Jobs.BaseURL, "https://") {
		return fmt.Errorf("JOBS_API_URL must start with http:// or https://, got %q", c.Jobs.BaseURL)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 16 characters")
	}

	if c.Jobs.CacheTTL < 0 {
		return fmt.Errorf("JOBS_CACHE_TTL must not be negative, got %s", c.Jobs.CacheTTL)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
