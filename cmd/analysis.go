package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"ev-fleet-monitor/internal/analytics"
	"ev-fleet-monitor/internal/monitor"
)

// analyzeCmd checks a vehicle's latest reading against the thresholds
func analyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze [vehicle_id]",
		Short: "Detect anomalies in a vehicle's latest reading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			svc, closeCache := newService(cmd.Context())
			defer closeCache()

			report, err := svc.Analyze(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			if asJSON {
				return printJSON(report)
			}

			a := report.Analysis
			fmt.Printf("Analysis for %s at %s\n", a.VehicleID, a.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Printf("  Status:   %s\n", a.Status)
			fmt.Printf("  Severity: %s\n", a.Severity)
			for _, an := range a.Anomalies {
				fmt.Printf("  [%-8s] %-10s %s = %.2f (limit %.2f)\n", an.Severity, an.System, an.Field, an.Value, an.Threshold)
			}
			for _, o := range report.PatternAnomalies {
				fmt.Printf("  [%-8s] %s: %d statistical outlier(s)\n", o.Severity, o.Metric, o.Occurrences)
			}
			fmt.Printf("\n%s\n", report.Report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	return cmd
}

// diagnoseCmd runs the diagnosis engine and prints the maintenance plan
func diagnoseCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diagnose [vehicle_id]",
		Short: "Diagnose a vehicle and build its maintenance plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			svc, closeCache := newService(cmd.Context())
			defer closeCache()

			report, err := svc.Diagnose(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("diagnosis failed: %w", err)
			}
			if asJSON {
				return printJSON(report)
			}

			d, plan := report.Diagnosis, report.MaintenancePlan
			fmt.Printf("Diagnosis for %s: %s\n", d.VehicleID, d.Status)
			for _, issue := range plan.Tasks {
				fmt.Printf("  P%d %-18s %-8s %-20s within %dh  ~$%.0f\n",
					issue.PriorityLevel, issue.Component, issue.Severity, issue.ActionRequired,
					issue.MaxDelayHours, issue.EstimatedCost)
			}
			fmt.Printf("\nPlan: %s | cost $%.0f-$%.0f | %.1fh | %d immediate, %d within a week\n",
				plan.PlanType, plan.TotalCost.Min, plan.TotalCost.Max, plan.TotalDurationHours,
				plan.RecommendedSchedule.Immediate, plan.RecommendedSchedule.WithinWeek)
			if report.AlertID != "" {
				fmt.Printf("Alert raised: %s\n", report.AlertID)
			}
			fmt.Printf("\n%s\n", report.Report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full report as JSON")
	return cmd
}

// trendsCmd fits trends over a vehicle's recent readings
func trendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trends [vehicle_id]",
		Short: "Show metric trends over a vehicle's recent readings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			svc, closeCache := newService(cmd.Context())
			defer closeCache()

			report, err := svc.Trends(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("trend analysis failed: %w", err)
			}

			fmt.Printf("Trends for %s (%d readings, %s): %s\n",
				args[0], report.ReadingsAnalyzed, report.AnalysisWindow, report.Status)
			if report.Status != analytics.StatusOK {
				return nil
			}

			names := make([]string, 0, len(report.Trends))
			for name := range report.Trends {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				t := report.Trends[name]
				fmt.Printf("  %-16s %-10s rate %+.3f  current %.2f  avg %.2f  std %.2f\n",
					name, t.Direction, t.Slope, t.Current, t.Mean, t.StdDev)
			}
			return nil
		},
	}
}

// insightsCmd summarises the fleet's alert history
func insightsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show failure distributions across the fleet's alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initDB(); err != nil {
				return err
			}
			defer database.Close()

			svc, closeCache := newService(cmd.Context())
			defer closeCache()

			in, err := svc.Insights(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(in)
			}
			if in.Status == monitor.InsightsNoData {
				fmt.Println("No alerts recorded yet. Run 'ev-monitor diagnose' on vehicles with faults first.")
				return nil
			}

			fmt.Println("Fleet Quality Insights")
			fmt.Println("======================")
			fmt.Printf("  Total Alerts:        %d\n", in.TotalAlerts)
			fmt.Printf("  Avg Repair Cost:     $%.2f\n", in.AverageRepairCost)
			fmt.Println("\n  By component:")
			for _, c := range in.HighRiskComponents {
				fmt.Printf("    %-18s %d\n", c, in.ComponentDistribution[c])
			}
			printCounts("By severity", in.SeverityDistribution)
			printCounts("By issue", in.IssueTypes)
			fmt.Printf("\n%s\n", in.Summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the insights as JSON")
	return cmd
}

func printCounts(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	fmt.Printf("\n  %s:\n", title)
	for _, name := range names {
		fmt.Printf("    %-24s %d\n", name, counts[name])
	}
}
