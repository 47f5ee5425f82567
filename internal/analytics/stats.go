// Package analytics computes trends and statistical outliers over a
// chronological window of sensor snapshots for one vehicle.
package analytics

import (
	"math"

	"ev-fleet-monitor/internal/models"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	avg := mean(values)
	var variance float64
	for _, v := range values {
		diff := v - avg
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// linearSlope fits y = m*x + b by ordinary least squares with x = index.
// Needs at least two values.
func linearSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// series extracts one metric across the window. ok is false when any
// reading lacks the metric.
func series(readings []models.SensorSnapshot, metric string) ([]float64, bool) {
	values := make([]float64, len(readings))
	for i, r := range readings {
		v, present := r.Readings[metric]
		if !present {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
