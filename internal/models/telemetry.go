package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metric names as they appear in sensor payloads, CSV headers and database columns.
const (
	MetricSoC              = "soc"
	MetricSoH              = "soh"
	MetricBatteryVoltage   = "battery_voltage"
	MetricBatteryCurrent   = "battery_current"
	MetricBatteryTemp      = "battery_temp"
	MetricChargeCycles     = "charge_cycles"
	MetricMotorTemp        = "motor_temp"
	MetricMotorVibration   = "motor_vibration"
	MetricMotorTorque      = "motor_torque"
	MetricMotorRPM         = "motor_rpm"
	MetricPowerConsumption = "power_consumption"
	MetricBrakePadWear     = "brake_pad_wear"
	MetricBrakePressure    = "brake_pressure"
	MetricRegenEfficiency  = "regen_efficiency"
	MetricTirePressureFL   = "tire_pressure_fl"
	MetricTirePressureFR   = "tire_pressure_fr"
	MetricTirePressureRL   = "tire_pressure_rl"
	MetricTirePressureRR   = "tire_pressure_rr"
	MetricTireTemp         = "tire_temp_avg"
	MetricSuspensionLoad   = "suspension_load"
	MetricAmbientTemp      = "ambient_temp"
	MetricAmbientHumidity  = "ambient_humidity"
	MetricLoadWeight       = "load_weight"
	MetricDrivingSpeed     = "driving_speed"
	MetricDistance         = "distance_traveled"
	MetricIdleTime         = "idle_time"
	MetricRouteRoughness   = "route_roughness"
)

// Optional model-derived fields carried alongside the raw metrics.
const (
	FieldFailureProbability   = "failure_probability"
	FieldComponentHealthScore = "component_health_score"
	FieldEstimatedRULHours    = "estimated_rul_hours"
)

// Metrics lists every sensor metric in storage order.
var Metrics = []string{
	MetricSoC, MetricSoH, MetricBatteryVoltage, MetricBatteryCurrent, MetricBatteryTemp, MetricChargeCycles,
	MetricMotorTemp, MetricMotorVibration, MetricMotorTorque, MetricMotorRPM, MetricPowerConsumption,
	MetricBrakePadWear, MetricBrakePressure, MetricRegenEfficiency,
	MetricTirePressureFL, MetricTirePressureFR, MetricTirePressureRL, MetricTirePressureRR, MetricTireTemp,
	MetricSuspensionLoad,
	MetricAmbientTemp, MetricAmbientHumidity, MetricLoadWeight, MetricDrivingSpeed,
	MetricDistance, MetricIdleTime, MetricRouteRoughness,
}

// TirePressures are the four wheel positions.
var TirePressures = []string{MetricTirePressureFL, MetricTirePressureFR, MetricTirePressureRL, MetricTirePressureRR}

var knownMetrics = func() map[string]bool {
	m := make(map[string]bool, len(Metrics))
	for _, name := range Metrics {
		m[name] = true
	}
	return m
}()

// IsMetric reports whether name is a recognised sensor metric.
func IsMetric(name string) bool {
	return knownMetrics[name]
}

// Readings maps metric name to value.
type Readings map[string]float64

// SensorSnapshot is one timestamped reading for one vehicle.
// It is treated as immutable once built.
type SensorSnapshot struct {
	ID                   int64
	VehicleID            string
	Timestamp            time.Time
	Readings             Readings
	FailureProbability   *float64
	ComponentHealthScore *float64
	EstimatedRULHours    *float64
}

// Value returns the named metric or a *MissingFieldError.
func (s SensorSnapshot) Value(name string) (float64, error) {
	v, ok := s.Readings[name]
	if !ok {
		return 0, &MissingFieldError{VehicleID: s.VehicleID, Field: name}
	}
	return v, nil
}

// Has reports whether the metric is present.
func (s SensorSnapshot) Has(name string) bool {
	_, ok := s.Readings[name]
	return ok
}

// Require fails on the first absent metric.
func (s SensorSnapshot) Require(names ...string) error {
	for _, name := range names {
		if _, err := s.Value(name); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON flattens readings into top-level keys.
func (s SensorSnapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.Readings)+6)
	for k, v := range s.Readings {
		out[k] = v
	}
	if s.ID != 0 {
		out["id"] = s.ID
	}
	out["vehicle_id"] = s.VehicleID
	if !s.Timestamp.IsZero() {
		out["timestamp"] = s.Timestamp.Format(time.RFC3339Nano)
	}
	if s.FailureProbability != nil {
		out[FieldFailureProbability] = *s.FailureProbability
	}
	if s.ComponentHealthScore != nil {
		out[FieldComponentHealthScore] = *s.ComponentHealthScore
	}
	if s.EstimatedRULHours != nil {
		out[FieldEstimatedRULHours] = *s.EstimatedRULHours
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the flat payload produced by MarshalJSON.
// Unknown keys are ignored; null metric values count as absent.
func (s *SensorSnapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out SensorSnapshot
	out.Readings = make(Readings)

	for key, msg := range raw {
		switch {
		case key == "id":
			if err := json.Unmarshal(msg, &out.ID); err != nil {
				return fmt.Errorf("id: %w", err)
			}
		case key == "vehicle_id":
			if err := json.Unmarshal(msg, &out.VehicleID); err != nil {
				return fmt.Errorf("vehicle_id: %w", err)
			}
		case key == "timestamp":
			var ts string
			if err := json.Unmarshal(msg, &ts); err != nil {
				return fmt.Errorf("timestamp: %w", err)
			}
			if ts != "" {
				t, err := ParseTimestamp(ts)
				if err != nil {
					return err
				}
				out.Timestamp = t
			}
		case key == FieldFailureProbability:
			v, err := optionalFloat(msg)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			out.FailureProbability = v
		case key == FieldComponentHealthScore:
			v, err := optionalFloat(msg)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			out.ComponentHealthScore = v
		case key == FieldEstimatedRULHours:
			v, err := optionalFloat(msg)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			out.EstimatedRULHours = v
		case IsMetric(key):
			v, err := optionalFloat(msg)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if v != nil {
				out.Readings[key] = *v
			}
		}
	}

	*s = out
	return nil
}

func optionalFloat(msg json.RawMessage) (*float64, error) {
	var v *float64
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Float returns a pointer to v, for the optional snapshot fields.
func Float(v float64) *float64 {
	return &v
}

// Vehicle represents a fleet vehicle
type Vehicle struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Year       int       `json:"year"`
	VIN        string    `json:"vin"`
	OwnerName  string    `json:"owner_name,omitempty"`
	OwnerEmail string    `json:"owner_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReadingQuery represents query parameters for sensor reading searches
type ReadingQuery struct {
	VehicleID string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// ReadingSummary provides aggregated statistics
type ReadingSummary struct {
	VehicleID           string  `json:"vehicle_id"`
	TotalRecords        int     `json:"total_records"`
	AvgSoC              float64 `json:"avg_soc"`
	MinSoH              float64 `json:"min_soh"`
	MaxBatteryTemp      float64 `json:"max_battery_temp"`
	MaxMotorTemp        float64 `json:"max_motor_temp"`
	AvgDrivingSpeed     float64 `json:"avg_driving_speed"`
	TotalDistanceKM     float64 `json:"total_distance_km"`
	AvgPowerConsumption float64 `json:"avg_power_consumption"`
}

// Alert is a persisted notice raised when a diagnosis finds a critical issue.
type Alert struct {
	ID             string    `json:"id"`
	VehicleID      string    `json:"vehicle_id"`
	AlertType      string    `json:"alert_type"`
	Severity       Severity  `json:"severity"`
	Component      string    `json:"component"`
	Message        string    `json:"message"`
	Issue          string    `json:"issue,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	EstimatedCost  float64   `json:"estimated_cost"`
	CreatedAt      time.Time `json:"created_at"`
	Resolved       bool      `json:"resolved"`
}

// AlertInsights aggregates the alert history across the fleet, resolved
// alerts included.
type AlertInsights struct {
	TotalAlerts           int64            `json:"total_alerts"`
	ComponentDistribution map[string]int64 `json:"component_distribution"`
	IssueTypes            map[string]int64 `json:"issue_types"`
	SeverityDistribution  map[string]int64 `json:"severity_distribution"`
	AverageRepairCost     float64          `json:"average_repair_cost"`
	// HighRiskComponents are the most frequently alerted components, most
	// frequent first.
	HighRiskComponents []string `json:"high_risk_components"`
}
