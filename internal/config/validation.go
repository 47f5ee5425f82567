package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError names one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, &ValidationError{Field: "server.shutdown_timeout", Message: "must be positive"})
	}

	if c.Database.Path == "" {
		errs = append(errs, &ValidationError{Field: "database.path", Message: "database path is required"})
	}

	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		errs = append(errs, &ValidationError{Field: "redis.ttl", Message: "ttl must be positive when redis is enabled"})
	}

	if c.Analysis.WindowSize < 2 {
		errs = append(errs, &ValidationError{
			Field:   "analysis.window_size",
			Message: fmt.Sprintf("window must hold at least 2 readings, got %d", c.Analysis.WindowSize),
		})
	}
	if c.Analysis.TrendWindowMinutes <= 0 {
		errs = append(errs, &ValidationError{Field: "analysis.trend_window_minutes", Message: "must be positive"})
	}

	if !logLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("format must be json or console, got %q", c.Logging.Format),
		})
	}

	return errors.Join(errs...)
}
