package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ev-fleet-monitor/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Database, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// readingColumns are the nullable per-metric columns, in models.Metrics order,
// followed by the optional model fields.
var readingColumns = append(append([]string{}, models.Metrics...),
	models.FieldFailureProbability,
	models.FieldComponentHealthScore,
	models.FieldEstimatedRULHours,
)

func (db *Database) initialize() error {
	metricCols := make([]string, len(readingColumns))
	for i, c := range readingColumns {
		metricCols[i] = fmt.Sprintf("\t\t%s REAL", c)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		year INTEGER NOT NULL,
		vin TEXT UNIQUE NOT NULL,
		owner_name TEXT,
		owner_email TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sensor_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		vehicle_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
` + strings.Join(metricCols, ",\n") + `
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		component TEXT,
		message TEXT NOT NULL,
		issue TEXT,
		recommendation TEXT,
		estimated_cost REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		resolved INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_readings_vehicle_timestamp ON sensor_readings(vehicle_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON sensor_readings(timestamp);
	CREATE INDEX IF NOT EXISTS idx_alerts_vehicle ON alerts(vehicle_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_alerts_open ON alerts(resolved) WHERE resolved = 0;
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is usable.
func (db *Database) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

// InsertVehicle adds a vehicle, replacing any existing row with the same id.
func (db *Database) InsertVehicle(ctx context.Context, v *models.Vehicle) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	query := `INSERT OR REPLACE INTO vehicles (id, model, year, vin, owner_name, owner_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.conn.ExecContext(ctx, query, v.ID, v.Model, v.Year, v.VIN, v.OwnerName, v.OwnerEmail, v.CreatedAt.UTC())
	return err
}

const vehicleColumns = `id, model, year, vin, COALESCE(owner_name, ''), COALESCE(owner_email, ''), created_at`

// GetVehicle retrieves a vehicle by ID
func (db *Database) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = ?`

	var v models.Vehicle
	err := db.conn.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.Model, &v.Year, &v.VIN, &v.OwnerName, &v.OwnerEmail, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err, "vehicle "+id)
	}
	return &v, nil
}

// ListVehicles returns all vehicles
func (db *Database) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vehicles := make([]models.Vehicle, 0)
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.Model, &v.Year, &v.VIN, &v.OwnerName, &v.OwnerEmail, &v.CreatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}
