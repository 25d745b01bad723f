package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Identity provider token secret
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, "AUTH_JWT_SECRET must be at least 32 characters")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Session memory
	switch c.Memory.Backend {
	case MemoryBackendInMemory, MemoryBackendRedis:
	default:
		errs = append(errs, fmt.Sprintf("MEMORY_BACKEND must be %q or %q, got %q",
			MemoryBackendInMemory, MemoryBackendRedis, c.Memory.Backend))
	}
	if c.Memory.MaxTurns < 1 {
		errs = append(errs, "MEMORY_MAX_TURNS must be positive")
	}
	if c.Memory.PlanTurns < 1 {
		errs = append(errs, "MEMORY_PLAN_TURNS must be positive")
	}

	// Calendar
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("CALENDAR_TIMEZONE %q is not a known location", c.Calendar.Timezone))
	}
	if c.Calendar.DefaultDuration <= 0 {
		errs = append(errs, "CALENDAR_DEFAULT_DURATION must be positive")
	}

	// Model key: warn only, requests fail with a configuration error
	if c.Gemini.APIKey == "" {
		slog.Warn("GEMINI_API_KEY is empty, assistant endpoints will return configuration errors")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
