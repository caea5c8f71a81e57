// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 64 * 1024
	defaultRateBurst       = 5
	defaultHistoryLimit    = 200
	defaultSendBufferSize  = 256
	defaultRoom            = "general"
	defaultShutdownTimeout = 10 * time.Second
	defaultBcryptCost      = 10
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration. DatabaseURL being set is what
// selects the durable message store.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	DatabaseURL     string
	HistoryLimit    int
	SendBufferSize  int
	DefaultRoom     string
	LogLevel        string
	ShutdownTimeout time.Duration
	BcryptCost      int
}

// DefaultConfig returns a Config populated with default values for all settings.
func DefaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
			"http://localhost:3000",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultRateBurst,
			RefillInterval: time.Second,
		},
		HistoryLimit:    defaultHistoryLimit,
		SendBufferSize:  defaultSendBufferSize,
		DefaultRoom:     defaultRoom,
		LogLevel:        "info",
		ShutdownTimeout: defaultShutdownTimeout,
		BcryptCost:      defaultBcryptCost,
	}
}

// Sanitize replaces zero or invalid values with defaults and returns the result.
func (c Config) Sanitize() Config {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateBurst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaultHistoryLimit
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaultSendBufferSize
	}
	if strings.TrimSpace(c.DefaultRoom) == "" {
		c.DefaultRoom = defaultRoom
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.BcryptCost <= 0 {
		c.BcryptCost = defaultBcryptCost
	}
	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

// NewConfigFromEnv creates a Config from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() Config {
	return configFromLookup(os.LookupEnv)
}

func configFromLookup(lookup func(string) (string, bool)) Config {
	cfg := DefaultConfig()
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if port := get("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := get("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := get("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}
	if burst := get("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := get("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}
	cfg.DatabaseURL = get("DATABASE_URL")
	if limit := get("HISTORY_LIMIT"); limit != "" {
		cfg.HistoryLimit = parseIntValue(limit, cfg.HistoryLimit)
	}
	if size := get("SEND_BUFFER_SIZE"); size != "" {
		cfg.SendBufferSize = parseIntValue(size, cfg.SendBufferSize)
	}
	if room := get("DEFAULT_ROOM"); room != "" {
		cfg.DefaultRoom = room
	}
	if level := get("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if timeout := get("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}
	if cost := get("BCRYPT_COST"); cost != "" {
		cfg.BcryptCost = parseIntValue(cost, cfg.BcryptCost)
	}

	return cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseSeconds accepts either a bare number of seconds or a Go duration string.
func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
