package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the memory service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL         string
	RedisURL            string
	MemoryEncryptionKey string

	ContextCacheCapacity int
	ChatModel            string
	ChatModelName        string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "recall"),
		AllowAnyOrigin:       false,
		DatabaseURL:          envTrimmed("DATABASE_URL"),
		RedisURL:             envTrimmed("REDIS_URL"),
		MemoryEncryptionKey:  envTrimmed("MEMORY_ENCRYPTION_KEY"),
		ContextCacheCapacity: 100,
		ChatModel:            envOrDefault("CHAT_MODEL", "echo"),
		ChatModelName:        envOrDefault("CHAT_MODEL_NAME", "echo-1"),
		ShutdownTimeout:      15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextCacheCapacity, err = intFromEnv("MEMORY_CACHE_CAPACITY", cfg.ContextCacheCapacity)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ContextCacheCapacity <= 0 {
		return Config{}, fmt.Errorf("MEMORY_CACHE_CAPACITY must be positive")
	}
	if cfg.DatabaseURL != "" && cfg.RedisURL != "" {
		return Config{}, fmt.Errorf("set only one of DATABASE_URL and REDIS_URL")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
