// Package health blends the latest snapshot into per-component scores.
package health

import (
	"math"
	"time"

	"ev-fleet-monitor/internal/models"
)

// Status labels, from the overall score.
const (
	StatusExcellent = "Excellent"
	StatusGood      = "Good"
	StatusFair      = "Fair"
	StatusPoor      = "Poor"
)

// Reference values used to normalise raw readings onto 0-100.
const (
	newPadWearMM     = 12.0
	nominalTirePSI   = 35.0
	motorTempWeight  = 50.0
	motorVibWeight   = 20.0
	motorTempRefDegC = 100.0
)

// RequiredFields lists every metric Score reads.
var RequiredFields = []string{
	models.MetricSoH,
	models.MetricSoC,
	models.MetricMotorTemp,
	models.MetricMotorVibration,
	models.MetricBrakePadWear,
	models.MetricRegenEfficiency,
	models.MetricTirePressureFL,
	models.MetricTirePressureFR,
	models.MetricTirePressureRL,
	models.MetricTirePressureRR,
}

// Scores holds component scores in [0, 100].
type Scores struct {
	Battery float64 `json:"battery"`
	Motor   float64 `json:"motor"`
	Brake   float64 `json:"brake"`
	Tire    float64 `json:"tire"`
	Overall float64 `json:"overall"`
	Status  string  `json:"status"`
}

// Score computes health from a single snapshot. All RequiredFields must be
// present; otherwise a *models.MissingFieldError is returned.
func Score(snap models.SensorSnapshot) (Scores, error) {
	if err := snap.Require(RequiredFields...); err != nil {
		return Scores{}, err
	}
	r := snap.Readings

	battery := math.Min(100, (r[models.MetricSoH]+r[models.MetricSoC])/2)
	motor := math.Max(0, 100-(r[models.MetricMotorTemp]/motorTempRefDegC*motorTempWeight+r[models.MetricMotorVibration]*motorVibWeight))
	brake := math.Min(100, (r[models.MetricBrakePadWear]/newPadWearMM*100+r[models.MetricRegenEfficiency])/2)

	lowest := r[models.TirePressures[0]]
	for _, f := range models.TirePressures[1:] {
		lowest = math.Min(lowest, r[f])
	}
	tire := math.Min(100, lowest/nominalTirePSI*100)

	overall := (battery + motor + brake + tire) / 4

	return Scores{
		Battery: battery,
		Motor:   motor,
		Brake:   brake,
		Tire:    tire,
		Overall: overall,
		Status:  statusFor(overall),
	}, nil
}

func statusFor(overall float64) string {
	switch {
	case overall > 90:
		return StatusExcellent
	case overall > 75:
		return StatusGood
	case overall > 60:
		return StatusFair
	default:
		return StatusPoor
	}
}

// Summary is the per-vehicle health view served by the API.
type Summary struct {
	VehicleID        string          `json:"vehicle_id"`
	OverallHealth    float64         `json:"overall_health"`
	ComponentHealth  ComponentHealth `json:"component_health"`
	LastUpdated      time.Time       `json:"last_updated"`
	DistanceTraveled float64         `json:"distance_traveled"`
	Status           string          `json:"status"`
}

// ComponentHealth is the rounded per-component breakdown.
type ComponentHealth struct {
	Battery float64 `json:"battery"`
	Motor   float64 `json:"motor"`
	Brake   float64 `json:"brake"`
	Tire    float64 `json:"tire"`
}

// Summarize scores the snapshot and rounds for display. Status is taken
// from the unrounded overall score.
func Summarize(snap models.SensorSnapshot) (Summary, error) {
	s, err := Score(snap)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		VehicleID:     snap.VehicleID,
		OverallHealth: round2(s.Overall),
		ComponentHealth: ComponentHealth{
			Battery: round2(s.Battery),
			Motor:   round2(s.Motor),
			Brake:   round2(s.Brake),
			Tire:    round2(s.Tire),
		},
		LastUpdated:      snap.Timestamp,
		DistanceTraveled: snap.Readings[models.MetricDistance],
		Status:           s.Status,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
