// Package anomaly checks a single sensor snapshot against the threshold
// catalog and grades each violation.
package anomaly

import (
	"fmt"
	"time"

	"ev-fleet-monitor/internal/models"
	"ev-fleet-monitor/internal/thresholds"
)

// Result statuses.
const (
	StatusNormal  = "Normal"
	StatusAnomaly = "Anomaly Detected"
)

// Anomaly is a single threshold violation.
type Anomaly struct {
	System    string          `json:"system"`
	Metric    string          `json:"metric"`
	Field     string          `json:"field"`
	Value     float64         `json:"value"`
	Threshold float64         `json:"threshold"`
	Severity  models.Severity `json:"severity"`
}

// Result aggregates the anomalies found in one snapshot.
type Result struct {
	VehicleID          string          `json:"vehicle_id"`
	Timestamp          time.Time       `json:"timestamp"`
	Status             string          `json:"status"`
	Severity           models.Severity `json:"severity"`
	Anomalies          []Anomaly       `json:"anomalies"`
	HealthScore        *float64        `json:"health_score,omitempty"`
	FailureProbability *float64        `json:"failure_probability,omitempty"`
}

// rule says how one catalog limit is read from a snapshot and graded.
type rule struct {
	label    string
	fields   []string
	pick     func(values []float64) float64
	severity func(value float64) models.Severity
}

func fixed(s models.Severity) func(float64) models.Severity {
	return func(float64) models.Severity { return s }
}

func single(values []float64) float64 { return values[0] }

func lowest(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func highest(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func one(field string) []string { return []string{field} }

// rules is keyed by "<subsystem>.<limit key>".
var rules = map[string]rule{
	"battery.soc_min": {"State of Charge", one(models.MetricSoC), single, func(v float64) models.Severity {
		if v < 10 {
			return models.SeverityHigh
		}
		return models.SeverityMedium
	}},
	"battery.soh_min": {"State of Health", one(models.MetricSoH), single, fixed(models.SeverityHigh)},
	"battery.temp_max": {"Temperature", one(models.MetricBatteryTemp), single, func(v float64) models.Severity {
		if v > 60 {
			return models.SeverityCritical
		}
		return models.SeverityHigh
	}},
	"battery.voltage_range": {"Voltage", one(models.MetricBatteryVoltage), single, fixed(models.SeverityMedium)},
	"battery.current_max":   {"Current", one(models.MetricBatteryCurrent), single, fixed(models.SeverityMedium)},

	"motor.temp_max":      {"Temperature", one(models.MetricMotorTemp), single, fixed(models.SeverityHigh)},
	"motor.vibration_max": {"Vibration", one(models.MetricMotorVibration), single, fixed(models.SeverityMedium)},
	"motor.torque_range":  {"Torque", one(models.MetricMotorTorque), single, fixed(models.SeverityLow)},
	"motor.rpm_max":       {"RPM", one(models.MetricMotorRPM), single, fixed(models.SeverityMedium)},

	"brake.pad_wear_min": {"Pad Wear", one(models.MetricBrakePadWear), single, fixed(models.SeverityHigh)},
	// Brakes are safety critical; no graduated tiers.
	"brake.pressure_min":         {"Hydraulic Pressure", one(models.MetricBrakePressure), single, fixed(models.SeverityCritical)},
	"brake.regen_efficiency_min": {"Regenerative Efficiency", one(models.MetricRegenEfficiency), single, fixed(models.SeverityLow)},

	// One warning per snapshot: only the worst wheel is reported.
	"tire.pressure_min": {"Pressure", models.TirePressures, lowest, fixed(models.SeverityMedium)},
	"tire.pressure_max": {"Pressure", models.TirePressures, highest, fixed(models.SeverityLow)},
	"tire.temp_max":     {"Temperature", one(models.MetricTireTemp), single, fixed(models.SeverityMedium)},

	"suspension.load_max": {"Load", one(models.MetricSuspensionLoad), single, fixed(models.SeverityMedium)},
}

// Detector evaluates snapshots against the threshold catalog.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	checks []check
}

type check struct {
	subsystem thresholds.Subsystem
	limit     thresholds.Limit
	rule      rule
}

// NewDetector builds a detector over the full catalog.
func NewDetector() *Detector {
	d := &Detector{}
	for _, sub := range thresholds.Subsystems() {
		for _, limit := range thresholds.Limits(sub) {
			r, ok := rules[string(sub)+"."+limit.Key]
			if !ok {
				panic(fmt.Sprintf("anomaly: no rule for %s.%s", sub, limit.Key))
			}
			d.checks = append(d.checks, check{subsystem: sub, limit: limit, rule: r})
		}
	}
	return d
}

// RequiredFields lists every metric Detect reads, in evaluation order.
func (d *Detector) RequiredFields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range d.checks {
		for _, f := range c.rule.fields {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// Detect checks one snapshot. A missing metric is returned as
// *models.MissingFieldError rather than defaulted.
func (d *Detector) Detect(snap models.SensorSnapshot) (Result, error) {
	if err := snap.Require(d.RequiredFields()...); err != nil {
		return Result{}, err
	}

	anomalies := make([]Anomaly, 0)
	for _, c := range d.checks {
		values := make([]float64, len(c.rule.fields))
		for i, f := range c.rule.fields {
			values[i] = snap.Readings[f]
		}
		v := c.rule.pick(values)
		if !c.limit.Violated(v) {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			System:    c.subsystem.Component(),
			Metric:    c.rule.label,
			Field:     fieldFor(c.rule.fields, values, v),
			Value:     v,
			Threshold: c.limit.Threshold(v),
			Severity:  c.rule.severity(v),
		})
	}

	severities := make([]models.Severity, len(anomalies))
	for i, a := range anomalies {
		severities[i] = a.Severity
	}

	status := StatusNormal
	if len(anomalies) > 0 {
		status = StatusAnomaly
	}

	return Result{
		VehicleID:          snap.VehicleID,
		Timestamp:          snap.Timestamp,
		Status:             status,
		Severity:           models.MaxSeverity(severities...),
		Anomalies:          anomalies,
		HealthScore:        snap.ComponentHealthScore,
		FailureProbability: snap.FailureProbability,
	}, nil
}

// fieldFor names the metric the picked value came from.
func fieldFor(fields []string, values []float64, picked float64) string {
	for i, v := range values {
		if v == picked {
			return fields[i]
		}
	}
	return fields[0]
}

// FallbackReport is the stub text used when no report generator is available.
func FallbackReport(r Result) string {
	return fmt.Sprintf("Analysis: Vehicle %s - %s. %d anomalies detected.", r.VehicleID, r.Status, len(r.Anomalies))
}
