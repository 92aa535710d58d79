// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Addr        string
	LogFile     string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Path string
	Seed bool
}

// RedisConfig configures the optional page cache. The cache is disabled when
// neither URL nor Addr is set. URL takes precedence over the other fields.
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Load reads an optional .env file and then the environment. The result is
// not validated so callers can apply flag overrides first.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("reading .env", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Addr:        getEnv("SHOPLIST_ADDR", ":5000"),
			LogFile:     getEnv("SHOPLIST_LOG", ""),
			CORSOrigins: SplitList(getEnv("SHOPLIST_CORS_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			Path: getEnv("SHOPLIST_DB", "shoplist.sqlite3"),
			Seed: getEnvAsBool("SHOPLIST_SEED", false),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("CACHE_TTL", 60*time.Second),
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.CacheEnabled() && c.Redis.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Redis.TTL)
	}
	if _, err := c.RedisOptions(); err != nil {
		return err
	}
	return nil
}

// CacheEnabled reports whether a Redis server is configured.
func (c *Config) CacheEnabled() bool {
	return c.Redis.URL != "" || c.Redis.Addr != ""
}

// RedisOptions returns client options for the configured Redis server, or nil
// if the cache is disabled.
func (c *Config) RedisOptions() (*redis.Options, error) {
	if c.Redis.URL != "" {
		opts, err := redis.ParseURL(strings.TrimSpace(c.Redis.URL))
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		return opts, nil
	}
	if c.Redis.Addr == "" {
		return nil, nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}, nil
}

// SplitList splits a comma separated value, dropping empty elements.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("invalid integer, using default", "key", key, "default", defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		slog.Warn("invalid boolean, using default", "key", key, "default", defaultValue)
		return defaultValue
	}

	return value
}

// getEnvAsDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}

	if n, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return time.Duration(n) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "default", defaultValue)
		return defaultValue
	}

	return value
}
