package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ev-fleet-monitor/internal/cache"
	"ev-fleet-monitor/internal/config"
	"ev-fleet-monitor/internal/db"
	"ev-fleet-monitor/internal/diagnosis"
	"ev-fleet-monitor/internal/logging"
	"ev-fleet-monitor/internal/monitor"
)

var (
	cfgFile  string
	dbPath   string
	cfg      *config.Config
	logger   *zap.Logger
	database *db.Database
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ev-monitor",
		Short: "EV Fleet Monitor - sensor ingestion, anomaly detection and maintenance planning",
		Long: `A CLI tool for ingesting EV sensor readings, detecting threshold and
statistical anomalies, diagnosing failing components and planning maintenance.
Readings are stored in SQLite and served over a REST API.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")

	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(vehicleCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(diagnoseCmd())
	rootCmd.AddCommand(trendsCmd())
	rootCmd.AddCommand(insightsCmd())

	if err := run(rootCmd); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command tree and flushes the logger whether or not the
// command failed. os.Exit skips deferred calls, so this stays out of main.
func run(rootCmd *cobra.Command) error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

// setup loads .env, configuration and the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		c.Database.Path = dbPath
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c

	logger, err = logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	return nil
}

// initDB initializes database connection
func initDB() error {
	var err error
	database, err = db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

// newService wires the monitor over the open database. The returned func
// releases the cache connection, if any.
func newService(ctx context.Context) (*monitor.Service, func()) {
	opts := monitor.Options{
		Logger:             logger.Named("monitor"),
		WindowSize:         cfg.Analysis.WindowSize,
		TrendWindowMinutes: cfg.Analysis.TrendWindowMinutes,
	}
	if cfg.Predictor.Enabled {
		opts.Predictor = diagnosis.NewRulePredictor()
	}

	cleanup := func() {}
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			logger.Warn("redis unavailable, continuing without diagnosis cache",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			opts.Cache = rc
			cleanup = func() { rc.Close() }
		}
	}

	return monitor.New(database, opts), cleanup
}
