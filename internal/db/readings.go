package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ev-fleet-monitor/internal/models"
)

var (
	insertReadingSQL = fmt.Sprintf(
		`INSERT INTO sensor_readings (vehicle_id, timestamp, %s) VALUES (?, ?%s)`,
		strings.Join(readingColumns, ", "),
		strings.Repeat(", ?", len(readingColumns)),
	)
	selectReadingSQL = `SELECT id, vehicle_id, timestamp, ` + strings.Join(readingColumns, ", ") + ` FROM sensor_readings`
)

func readingArgs(s *models.SensorSnapshot) []interface{} {
	args := make([]interface{}, 0, len(readingColumns)+2)
	args = append(args, s.VehicleID, s.Timestamp.UTC())
	for _, m := range models.Metrics {
		if v, ok := s.Readings[m]; ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	return append(args, nullable(s.FailureProbability), nullable(s.ComponentHealthScore), nullable(s.EstimatedRULHours))
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReading(row scanner) (models.SensorSnapshot, error) {
	var s models.SensorSnapshot
	values := make([]sql.NullFloat64, len(readingColumns))
	dest := []interface{}{&s.ID, &s.VehicleID, &s.Timestamp}
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := row.Scan(dest...); err != nil {
		return s, err
	}

	s.Readings = make(models.Readings, len(models.Metrics))
	for i, m := range models.Metrics {
		if values[i].Valid {
			s.Readings[m] = values[i].Float64
		}
	}
	optional := values[len(models.Metrics):]
	s.FailureProbability = floatPtr(optional[0])
	s.ComponentHealthScore = floatPtr(optional[1])
	s.EstimatedRULHours = floatPtr(optional[2])
	return s, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

func scanReadings(rows *sql.Rows) ([]models.SensorSnapshot, error) {
	defer rows.Close()

	results := make([]models.SensorSnapshot, 0)
	for rows.Next() {
		s, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// InsertReading stores one snapshot and sets its ID.
func (db *Database) InsertReading(ctx context.Context, s *models.SensorSnapshot) error {
	result, err := db.conn.ExecContext(ctx, insertReadingSQL, readingArgs(s)...)
	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	s.ID = id
	return nil
}

// InsertReadingBatch inserts all snapshots in one transaction.
func (db *Database) InsertReadingBatch(ctx context.Context, records []models.SensorSnapshot) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var count int64
	for i := range records {
		if _, err := stmt.ExecContext(ctx, readingArgs(&records[i])...); err != nil {
			return 0, fmt.Errorf("record %d (%s): %w", i, records[i].VehicleID, err)
		}
		count++
	}

	// Nothing is stored unless the commit succeeds.
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// QueryReadings returns matching readings, newest first.
func (db *Database) QueryReadings(ctx context.Context, q models.ReadingQuery) ([]models.SensorSnapshot, error) {
	var conditions []string
	var args []interface{}

	query := selectReadingSQL

	if q.VehicleID != "" {
		conditions = append(conditions, "vehicle_id = ?")
		args = append(args, q.VehicleID)
	}
	if !q.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, q.StartTime.UTC())
	}
	if !q.EndTime.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, q.EndTime.UTC())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
		if q.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", q.Offset)
		}
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanReadings(rows)
}

// GetLatestReading returns the most recent reading for a vehicle
func (db *Database) GetLatestReading(ctx context.Context, vehicleID string) (*models.SensorSnapshot, error) {
	query := selectReadingSQL + ` WHERE vehicle_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`

	s, err := scanReading(db.conn.QueryRowContext(ctx, query, vehicleID))
	if err != nil {
		return nil, notFound(err, "readings for vehicle "+vehicleID)
	}
	return &s, nil
}

// GetReadingWindow returns up to n of the vehicle's most recent readings,
// oldest first.
func (db *Database) GetReadingWindow(ctx context.Context, vehicleID string, n int) ([]models.SensorSnapshot, error) {
	readings, err := db.QueryReadings(ctx, models.ReadingQuery{VehicleID: vehicleID, Limit: n})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
	return readings, nil
}

// GetReadingSummary returns aggregated statistics for a vehicle
func (db *Database) GetReadingSummary(ctx context.Context, vehicleID string) (*models.ReadingSummary, error) {
	query := `
		SELECT
			vehicle_id,
			COUNT(*),
			COALESCE(AVG(soc), 0),
			COALESCE(MIN(soh), 0),
			COALESCE(MAX(battery_temp), 0),
			COALESCE(MAX(motor_temp), 0),
			COALESCE(AVG(driving_speed), 0),
			COALESCE(MAX(distance_traveled) - MIN(distance_traveled), 0),
			COALESCE(AVG(power_consumption), 0)
		FROM sensor_readings
		WHERE vehicle_id = ?
		GROUP BY vehicle_id
	`

	var s models.ReadingSummary
	err := db.conn.QueryRowContext(ctx, query, vehicleID).Scan(
		&s.VehicleID, &s.TotalRecords, &s.AvgSoC, &s.MinSoH, &s.MaxBatteryTemp,
		&s.MaxMotorTemp, &s.AvgDrivingSpeed, &s.TotalDistanceKM, &s.AvgPowerConsumption,
	)
	if err != nil {
		return nil, notFound(err, "readings for vehicle "+vehicleID)
	}
	return &s, nil
}

// GetRecordCount returns the total number of stored readings.
func (db *Database) GetRecordCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sensor_readings").Scan(&count)
	return count, err
}
