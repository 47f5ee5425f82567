package db

import (
	"context"
	"fmt"
	"math"
	"time"

	"ev-fleet-monitor/internal/models"
)

// InsertAlert stores a new alert. ID must already be set.
func (db *Database) InsertAlert(ctx context.Context, a *models.Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO alerts (id, vehicle_id, alert_type, severity, component, message, issue, recommendation,
		                    estimated_cost, created_at, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		a.ID, a.VehicleID, a.AlertType, string(a.Severity), a.Component, a.Message, a.Issue, a.Recommendation,
		a.EstimatedCost, a.CreatedAt.UTC(), a.Resolved,
	)
	return err
}

// ListAlerts returns alerts newest first. An empty vehicleID lists every
// vehicle; unresolvedOnly hides resolved alerts.
func (db *Database) ListAlerts(ctx context.Context, vehicleID string, unresolvedOnly bool, limit int) ([]models.Alert, error) {
	query := `
		SELECT id, vehicle_id, alert_type, severity, COALESCE(component, ''), message, COALESCE(issue, ''),
		       COALESCE(recommendation, ''), estimated_cost, created_at, resolved
		FROM alerts
		WHERE 1 = 1
	`

	var args []interface{}
	if vehicleID != "" {
		query += " AND vehicle_id = ?"
		args = append(args, vehicleID)
	}
	if unresolvedOnly {
		query += " AND resolved = 0"
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		var a models.Alert
		var severity string
		if err := rows.Scan(&a.ID, &a.VehicleID, &a.AlertType, &severity, &a.Component, &a.Message, &a.Issue,
			&a.Recommendation, &a.EstimatedCost, &a.CreatedAt, &a.Resolved); err != nil {
			return nil, err
		}
		a.Severity = models.Severity(severity)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ResolveAlert marks an alert resolved.
func (db *Database) ResolveAlert(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `UPDATE alerts SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

// highRiskLimit and issueTypeLimit cap the ranked lists in AlertInsights.
const (
	highRiskLimit  = 5
	issueTypeLimit = 10
)

// GetAlertInsights groups every stored alert by component, issue and
// severity. An empty table yields zero counts and empty distributions.
func (db *Database) GetAlertInsights(ctx context.Context) (*models.AlertInsights, error) {
	var in models.AlertInsights
	var avgCost float64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(estimated_cost), 0) FROM alerts`,
	).Scan(&in.TotalAlerts, &avgCost)
	if err != nil {
		return nil, fmt.Errorf("alert totals: %w", err)
	}
	in.AverageRepairCost = math.Round(avgCost*100) / 100

	components, err := db.countBy(ctx, "COALESCE(component, '')", "", 0)
	if err != nil {
		return nil, fmt.Errorf("component distribution: %w", err)
	}
	issues, err := db.countBy(ctx, "issue", "issue IS NOT NULL AND issue != ''", issueTypeLimit)
	if err != nil {
		return nil, fmt.Errorf("issue types: %w", err)
	}
	severities, err := db.countBy(ctx, "severity", "", 0)
	if err != nil {
		return nil, fmt.Errorf("severity distribution: %w", err)
	}

	in.ComponentDistribution = components.toMap()
	in.IssueTypes = issues.toMap()
	in.SeverityDistribution = severities.toMap()
	in.HighRiskComponents = make([]string, 0, highRiskLimit)
	for i, c := range components {
		if i == highRiskLimit {
			break
		}
		in.HighRiskComponents = append(in.HighRiskComponents, c.name)
	}
	return &in, nil
}

type groupCount struct {
	name  string
	count int64
}

type groupCounts []groupCount

func (g groupCounts) toMap() map[string]int64 {
	out := make(map[string]int64, len(g))
	for _, c := range g {
		out[c.name] = c.count
	}
	return out
}

// countBy counts alerts grouped by expr, most frequent first with ties
// broken by name. expr and where are fixed SQL fragments, never user input.
func (db *Database) countBy(ctx context.Context, expr, where string, limit int) (groupCounts, error) {
	query := "SELECT " + expr + " AS name, COUNT(*) AS n FROM alerts"
	if where != "" {
		query += " WHERE " + where
	}
	query += " GROUP BY name ORDER BY n DESC, name"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out groupCounts
	for rows.Next() {
		var c groupCount
		if err := rows.Scan(&c.name, &c.count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetStats returns database statistics
func (db *Database) GetStats(ctx context.Context) (map[string]interface{}, error) {
	counts := []struct {
		key   string
		query string
	}{
		{"total_sensor_readings", "SELECT COUNT(*) FROM sensor_readings"},
		{"total_vehicles", "SELECT COUNT(*) FROM vehicles"},
		{"reporting_vehicles", "SELECT COUNT(DISTINCT vehicle_id) FROM sensor_readings"},
		{"total_alerts", "SELECT COUNT(*) FROM alerts"},
		{"open_alerts", "SELECT COUNT(*) FROM alerts WHERE resolved = 0"},
	}

	stats := make(map[string]interface{}, len(counts))
	for _, c := range counts {
		var n int64
		if err := db.conn.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("%s: %w", c.key, err)
		}
		stats[c.key] = n
	}
	return stats, nil
}
