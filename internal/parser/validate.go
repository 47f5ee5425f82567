package parser

import (
	"fmt"
	"math"

	"ev-fleet-monitor/internal/models"
)

var percentages = []string{
	models.MetricSoC,
	models.MetricSoH,
	models.MetricRegenEfficiency,
	models.MetricAmbientHumidity,
}

var nonNegative = []string{
	models.MetricChargeCycles,
	models.MetricMotorVibration,
	models.MetricMotorRPM,
	models.MetricBrakePadWear,
	models.MetricBrakePressure,
	models.MetricTirePressureFL,
	models.MetricTirePressureFR,
	models.MetricTirePressureRL,
	models.MetricTirePressureRR,
	models.MetricSuspensionLoad,
	models.MetricLoadWeight,
	models.MetricDrivingSpeed,
	models.MetricDistance,
	models.MetricIdleTime,
	models.MetricRouteRoughness,
}

// ValidateSnapshot returns every problem found; nil means the snapshot is
// fit to store. Absent metrics are not an error here.
func ValidateSnapshot(s *models.SensorSnapshot) []string {
	var errors []string

	if s.VehicleID == "" {
		errors = append(errors, "vehicle_id is required")
	}
	if s.Timestamp.IsZero() {
		errors = append(errors, "timestamp is required")
	}

	for _, m := range models.Metrics {
		if v, ok := s.Readings[m]; ok && !finite(v) {
			errors = append(errors, fmt.Sprintf("%s must be a finite number", m))
		}
	}
	for _, m := range percentages {
		if v, ok := s.Readings[m]; ok && finite(v) && (v < 0 || v > 100) {
			errors = append(errors, fmt.Sprintf("%s must be between 0 and 100", m))
		}
	}
	for _, m := range nonNegative {
		if v, ok := s.Readings[m]; ok && finite(v) && v < 0 {
			errors = append(errors, fmt.Sprintf("%s cannot be negative", m))
		}
	}

	if p := s.FailureProbability; p != nil && !(*p >= 0 && *p <= 1) {
		errors = append(errors, "failure_probability must be between 0 and 1")
	}
	if h := s.ComponentHealthScore; h != nil && !(*h >= 0 && *h <= 1) {
		errors = append(errors, "component_health_score must be between 0 and 1")
	}
	if r := s.EstimatedRULHours; r != nil && !(*r >= 0 && !math.IsInf(*r, 1)) {
		errors = append(errors, "estimated_rul_hours must be a finite non-negative number")
	}

	return errors
}

// finite reports whether v is neither NaN nor ±Inf.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
