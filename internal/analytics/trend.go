package analytics

import (
	"fmt"
	"math"
	"time"

	"ev-fleet-monitor/internal/models"
)

// Trend directions.
const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
	DirectionStable     = "stable"
)

// Report statuses.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
)

// stableSlope is an absolute cutoff shared by all metrics regardless of scale.
const stableSlope = 0.01

// TrendMetrics are the metrics AnalyzeTrend fits, in report order.
var TrendMetrics = []string{
	models.MetricSoC,
	models.MetricSoH,
	models.MetricBatteryTemp,
	models.MetricMotorTemp,
	models.MetricMotorVibration,
}

// TrendSummary describes one metric over the window.
type TrendSummary struct {
	Direction string  `json:"direction"`
	Slope     float64 `json:"rate"`
	Current   float64 `json:"current"`
	Mean      float64 `json:"avg"`
	StdDev    float64 `json:"std"`
}

// TrendReport is the result of AnalyzeTrend.
type TrendReport struct {
	VehicleID        string                  `json:"vehicle_id,omitempty"`
	Status           string                  `json:"status"`
	AnalysisWindow   string                  `json:"analysis_window"`
	ReadingsAnalyzed int                     `json:"readings_analyzed"`
	Trends           map[string]TrendSummary `json:"trends"`
	From             *time.Time              `json:"from,omitempty"`
	To               *time.Time              `json:"to,omitempty"`
}

// AnalyzeTrend fits a linear trend to each tracked metric. readings must be
// ordered oldest first; the reading index stands in for elapsed time.
// Fewer than two readings yields StatusInsufficientData, not an error.
func AnalyzeTrend(readings []models.SensorSnapshot, windowMinutes int) TrendReport {
	report := TrendReport{
		Status:           StatusInsufficientData,
		AnalysisWindow:   fmt.Sprintf("%d minutes", windowMinutes),
		ReadingsAnalyzed: len(readings),
		Trends:           make(map[string]TrendSummary),
	}
	if len(readings) > 0 {
		report.VehicleID = readings[0].VehicleID
	}
	if len(readings) < 2 {
		return report
	}

	report.Status = StatusOK
	from, to := readings[0].Timestamp, readings[len(readings)-1].Timestamp
	report.From, report.To = &from, &to

	for _, metric := range TrendMetrics {
		values, ok := series(readings, metric)
		if !ok {
			continue
		}
		slope := linearSlope(values)
		report.Trends[metric] = TrendSummary{
			Direction: classify(slope),
			Slope:     slope,
			Current:   values[len(values)-1],
			Mean:      mean(values),
			StdDev:    stdDev(values),
		}
	}
	return report
}

func classify(slope float64) string {
	switch {
	case math.Abs(slope) < stableSlope:
		return DirectionStable
	case slope > 0:
		return DirectionIncreasing
	default:
		return DirectionDecreasing
	}
}
