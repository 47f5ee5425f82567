package analytics

import (
	"math"

	"ev-fleet-monitor/internal/models"
)

const (
	// MinOutlierSample is the smallest window DetectOutliers will score.
	MinOutlierSample = 10
	zScoreThreshold  = 3.0
	outlierType      = "statistical_outlier"
)

// OutlierMetrics are the metrics DetectOutliers scores, in report order.
var OutlierMetrics = []string{
	models.MetricBatteryTemp,
	models.MetricMotorTemp,
	models.MetricMotorVibration,
	models.MetricPowerConsumption,
}

// Outlier reports a metric with one or more readings beyond the z-score threshold.
type Outlier struct {
	Metric      string          `json:"metric"`
	Type        string          `json:"type"`
	Occurrences int             `json:"occurrences"`
	Severity    models.Severity `json:"severity"`
}

// DetectOutliers flags metrics whose readings sit more than three standard
// deviations from the rest of the window. Each reading is scored against the
// mean and population deviation of the other readings, so a single spike is
// not masked by its own contribution to the spread. Windows smaller than
// MinOutlierSample return an empty list.
func DetectOutliers(readings []models.SensorSnapshot) []Outlier {
	outliers := make([]Outlier, 0)
	if len(readings) < MinOutlierSample {
		return outliers
	}

	for _, metric := range OutlierMetrics {
		values, ok := series(readings, metric)
		if !ok {
			continue
		}
		// Flat windows have nothing to score.
		if stdDev(values) == 0 {
			continue
		}

		count := 0
		for i := range values {
			if zScore(values, i) > zScoreThreshold {
				count++
			}
		}
		if count > 0 {
			outliers = append(outliers, Outlier{
				Metric:      metric,
				Type:        outlierType,
				Occurrences: count,
				Severity:    models.SeverityMedium,
			})
		}
	}
	return outliers
}

// zScore scores values[i] leave-one-out: the mean and standard deviation
// come from the other values only, so a lone spike cannot widen the spread
// it is measured against.
func zScore(values []float64, i int) float64 {
	rest := make([]float64, 0, len(values)-1)
	rest = append(rest, values[:i]...)
	rest = append(rest, values[i+1:]...)

	avg := mean(rest)
	sd := stdDev(rest)
	diff := math.Abs(values[i] - avg)
	if sd == 0 {
		if diff == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return diff / sd
}
