package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ev-fleet-monitor/internal/api"
)

// serverCmd starts the REST API server
func serverCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			svc, closeCache := newService(cmd.Context())
			defer closeCache()

			server := api.NewServer(database, svc, logger.Named("api"))
			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			srv := server.HTTPServer(addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout)

			fmt.Printf("EV Fleet Monitor API Server\n")
			fmt.Printf("   Listening on http://localhost%s\n", addr)
			fmt.Printf("   Database: %s\n\n", cfg.Database.Path)
			fmt.Println("Available endpoints:")
			fmt.Println("  GET  /health")
			fmt.Println("  GET  /metrics")
			fmt.Println("  GET  /api/v1/vehicles")
			fmt.Println("  POST /api/v1/vehicles")
			fmt.Println("  GET  /api/v1/vehicles/{id}")
			fmt.Println("  GET  /api/v1/vehicles/{id}/health")
			fmt.Println("  GET  /api/v1/telemetry")
			fmt.Println("  POST /api/v1/telemetry")
			fmt.Println("  POST /api/v1/telemetry/batch")
			fmt.Println("  GET  /api/v1/telemetry/latest/{vehicle_id}")
			fmt.Println("  GET  /api/v1/telemetry/summary/{vehicle_id}")
			fmt.Println("  POST /api/v1/analyze")
			fmt.Println("  GET  /api/v1/sensor/{vehicle_id}/analyze")
			fmt.Println("  GET  /api/v1/sensor/{vehicle_id}/trends")
			fmt.Println("  GET  /api/v1/sensor/{vehicle_id}/outliers")
			fmt.Println("  POST /api/v1/diagnosis/{vehicle_id}")
			fmt.Println("  GET  /api/v1/alerts[/{vehicle_id}]")
			fmt.Println("  POST /api/v1/alerts/{id}/resolve")
			fmt.Println("  GET  /api/v1/insights")
			fmt.Println("  GET  /api/v1/stats")
			fmt.Println()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return fmt.Errorf("server failed: %w", err)
			case <-quit:
			}

			logger.Info("shutting down server")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logger.Info("server exited")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Server port (overrides config)")
	return cmd
}
