// Package config loads monitor settings from defaults, a YAML file and
// EVMON_* environment variables.
package config

import "time"

// Config is the complete runtime configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Analysis  AnalysisConfig
	Predictor PredictorConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Path string
}

// RedisConfig configures the diagnosis cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type AnalysisConfig struct {
	// WindowSize is how many recent readings feed trend and outlier analysis.
	WindowSize         int
	TrendWindowMinutes int
}

type PredictorConfig struct {
	Enabled bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "fleet.db",
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		Analysis: AnalysisConfig{
			WindowSize:         100,
			TrendWindowMinutes: 60,
		},
		Predictor: PredictorConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}
