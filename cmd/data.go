package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ev-fleet-monitor/internal/generator"
	"ev-fleet-monitor/internal/models"
	"ev-fleet-monitor/internal/parser"
)

// ingestCmd ingests sensor readings from files
func ingestCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest sensor readings from files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			svc, closeCache := newService(cmd.Context())
			defer closeCache()

			var totalRecords int64
			totalErrors := 0

			for _, file := range args {
				fmt.Printf("Processing %s...\n", file)
				start := time.Now()

				f := format
				if f == "" {
					f = parser.FormatFromPath(file)
				}
				records, err := parser.NewParser(f, logger.Named("parser")).ParseFile(file)
				if err != nil {
					fmt.Printf("  Error: %v\n", err)
					totalErrors++
					continue
				}

				result, err := svc.Ingest(cmd.Context(), records, "file")
				totalErrors += result.Rejected
				for _, e := range result.Errors {
					fmt.Printf("  Rejected %s\n", e)
				}
				if err != nil {
					fmt.Printf("  Database error: %v\n", err)
					continue
				}

				elapsed := time.Since(start)
				fmt.Printf("  Inserted %d records in %v (%.0f records/sec)\n",
					result.Accepted, elapsed, float64(result.Accepted)/elapsed.Seconds())
				totalRecords += result.Accepted
			}

			fmt.Printf("\nTotal: %d records ingested", totalRecords)
			if totalErrors > 0 {
				fmt.Printf(", %d errors", totalErrors)
			}
			fmt.Println()

			if stored, err := database.GetRecordCount(cmd.Context()); err == nil {
				fmt.Printf("Database now holds %d readings\n", stored)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "File format (csv, json, log); guessed from the extension when empty")
	return cmd
}

// queryCmd queries stored sensor readings
func queryCmd() *cobra.Command {
	var vehicleID string
	var startTime string
	var endTime string
	var limit int
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query sensor readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			q := models.ReadingQuery{
				VehicleID: vehicleID,
				Limit:     limit,
			}

			if startTime != "" {
				t, err := models.ParseTimestamp(startTime)
				if err != nil {
					return fmt.Errorf("invalid start time: %w", err)
				}
				q.StartTime = t
			}

			if endTime != "" {
				t, err := models.ParseTimestamp(endTime)
				if err != nil {
					return fmt.Errorf("invalid end time: %w", err)
				}
				q.EndTime = t
			}

			start := time.Now()
			results, err := database.QueryReadings(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("query error: %w", err)
			}
			elapsed := time.Since(start)

			switch outputFormat {
			case "json":
				return printJSON(results)
			default:
				fmt.Printf("Found %d records (query time: %v)\n\n", len(results), elapsed)
				for _, r := range results {
					fmt.Printf("[%s] Vehicle: %s | SoC: %s%% | SoH: %s%% | Batt: %s°C | Motor: %s°C | Brake: %s bar\n",
						r.Timestamp.Format("2006-01-02 15:04:05"), r.VehicleID,
						metric(r, models.MetricSoC), metric(r, models.MetricSoH),
						metric(r, models.MetricBatteryTemp), metric(r, models.MetricMotorTemp),
						metric(r, models.MetricBrakePressure))
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&vehicleID, "vehicle", "V", "", "Filter by vehicle ID")
	cmd.Flags().StringVarP(&startTime, "start", "s", "", "Start time (RFC3339)")
	cmd.Flags().StringVarP(&endTime, "end", "e", "", "End time (RFC3339)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 100, "Maximum records to return")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	return cmd
}

func metric(s models.SensorSnapshot, name string) string {
	v, ok := s.Readings[name]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f", v)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statsCmd shows database statistics
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			stats, err := database.GetStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("error getting stats: %w", err)
			}

			fmt.Println("EV Fleet Monitor Statistics")
			fmt.Println("===========================")
			fmt.Printf("  Total Vehicles:      %v\n", stats["total_vehicles"])
			fmt.Printf("  Reporting Vehicles:  %v\n", stats["reporting_vehicles"])
			fmt.Printf("  Sensor Readings:     %v\n", stats["total_sensor_readings"])
			fmt.Printf("  Alerts (open/total): %v/%v\n", stats["open_alerts"], stats["total_alerts"])
			fmt.Printf("  Database:            %s\n", cfg.Database.Path)

			return nil
		},
	}
}

// generateCmd generates a synthetic fleet with injected faults
func generateCmd() *cobra.Command {
	opts := generator.DefaultOptions()
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample sensor data with injected faults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			opts.Start = time.Now().UTC().Add(-time.Duration(opts.ReadingsPerVehicle) * opts.Interval).Truncate(time.Second)
			fleet := generator.Generate(opts)

			for i := range fleet.Vehicles {
				if err := database.InsertVehicle(cmd.Context(), &fleet.Vehicles[i]); err != nil {
					return fmt.Errorf("error creating vehicle: %w", err)
				}
			}
			fmt.Printf("Created %d vehicles\n", len(fleet.Vehicles))
			for _, v := range fleet.Vehicles {
				if s, ok := fleet.Faults[v.ID]; ok {
					fmt.Printf("  %s: %s (%s)\n", v.ID, s.Issue, s.Component)
				}
			}

			// Insert in batches of 1000
			start := time.Now()
			batchSize := 1000
			var inserted int64

			for i := 0; i < len(fleet.Readings); i += batchSize {
				end := min(i+batchSize, len(fleet.Readings))
				count, err := database.InsertReadingBatch(cmd.Context(), fleet.Readings[i:end])
				if err != nil {
					return fmt.Errorf("error inserting readings: %w", err)
				}
				inserted += count
				fmt.Printf("\rInserted %d/%d records...", inserted, len(fleet.Readings))
			}

			elapsed := time.Since(start)
			fmt.Printf("\nGenerated %d sensor readings in %v (%.0f records/sec)\n",
				inserted, elapsed, float64(inserted)/elapsed.Seconds())

			if output != "" {
				if err := export(output, fleet.Readings); err != nil {
					return err
				}
				fmt.Printf("Data exported to %s\n", output)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.ReadingsPerVehicle, "count", "c", opts.ReadingsPerVehicle, "Readings per vehicle")
	cmd.Flags().IntVarP(&opts.Vehicles, "vehicles", "n", opts.Vehicles, "Number of vehicles to create")
	cmd.Flags().Int64Var(&opts.Seed, "seed", opts.Seed, "Random seed")
	cmd.Flags().Float64Var(&opts.FailureRate, "failure-rate", opts.FailureRate, "Fraction of vehicles that develop a fault")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Export generated data to a .csv or .json file")
	return cmd
}

func export(path string, readings []models.SensorSnapshot) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer file.Close()

	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return generator.WriteCSV(file, readings)
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(readings)
}

// vehicleCmd manages vehicles
func vehicleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicle",
		Short: "Vehicle management commands",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all vehicles",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			vehicles, err := database.ListVehicles(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing vehicles: %w", err)
			}

			if len(vehicles) == 0 {
				fmt.Println("No vehicles found. Use 'ev-monitor generate' to create sample data.")
				return nil
			}

			fmt.Printf("%-10s %-12s %-6s %-18s\n", "ID", "Model", "Year", "VIN")
			fmt.Println(strings.Repeat("-", 49))
			for _, v := range vehicles {
				fmt.Printf("%-10s %-12s %-6d %-18s\n", v.ID, v.Model, v.Year, v.VIN)
			}

			return nil
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary [vehicle_id]",
		Short: "Show vehicle reading summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			start := time.Now()
			summary, err := database.GetReadingSummary(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error getting summary: %w", err)
			}
			elapsed := time.Since(start)

			fmt.Printf("Reading Summary for %s (query: %v)\n", args[0], elapsed)
			fmt.Println("==========================================")
			fmt.Printf("  Total Records:       %d\n", summary.TotalRecords)
			fmt.Printf("  Average SoC:         %.1f%%\n", summary.AvgSoC)
			fmt.Printf("  Minimum SoH:         %.1f%%\n", summary.MinSoH)
			fmt.Printf("  Max Battery Temp:    %.1f°C\n", summary.MaxBatteryTemp)
			fmt.Printf("  Max Motor Temp:      %.1f°C\n", summary.MaxMotorTemp)
			fmt.Printf("  Average Speed:       %.1f km/h\n", summary.AvgDrivingSpeed)
			fmt.Printf("  Distance:            %.1f km\n", summary.TotalDistanceKM)
			fmt.Printf("  Avg Power Draw:      %.1f kW\n", summary.AvgPowerConsumption)

			return nil
		},
	}

	cmd.AddCommand(listCmd, summaryCmd)
	return cmd
}
