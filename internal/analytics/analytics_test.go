package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ev-fleet-monitor/internal/models"
)

var start = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// window builds one snapshot per index, filling each metric from its column.
func window(columns map[string][]float64) []models.SensorSnapshot {
	n := 0
	for _, col := range columns {
		if len(col) > n {
			n = len(col)
		}
	}
	out := make([]models.SensorSnapshot, n)
	for i := range out {
		out[i] = models.SensorSnapshot{
			VehicleID: "EV-00042",
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Readings:  models.Readings{},
		}
		for metric, col := range columns {
			if i < len(col) {
				out[i].Readings[metric] = col[i]
			}
		}
	}
	return out
}

func TestAnalyzeTrendInsufficientData(t *testing.T) {
	for _, n := range []int{0, 1} {
		readings := window(map[string][]float64{models.MetricSoC: make([]float64, n)})
		report := AnalyzeTrend(readings, 60)

		assert.Equal(t, StatusInsufficientData, report.Status)
		assert.Equal(t, n, report.ReadingsAnalyzed)
		assert.Empty(t, report.Trends)
		assert.Equal(t, "60 minutes", report.AnalysisWindow)

		data, err := json.Marshal(report)
		require.NoError(t, err)
		assert.NotContains(t, string(data), `"from"`)
		assert.NotContains(t, string(data), `"to"`)
	}
}

func TestAnalyzeTrendDirections(t *testing.T) {
	readings := window(map[string][]float64{
		models.MetricSoC:            {80, 70, 60, 50},
		models.MetricSoH:            {95, 95.001, 95.002, 95.003},
		models.MetricBatteryTemp:    {30, 32, 34, 36},
		models.MetricMotorTemp:      {70, 70, 70, 70},
		models.MetricMotorVibration: {0.5, 0.6, 0.7, 0.8},
	})

	report := AnalyzeTrend(readings, 30)
	require.Equal(t, StatusOK, report.Status)
	assert.Equal(t, "EV-00042", report.VehicleID)
	assert.Equal(t, 4, report.ReadingsAnalyzed)
	require.NotNil(t, report.From)
	require.NotNil(t, report.To)
	assert.Equal(t, start, *report.From)
	assert.Equal(t, start.Add(3*time.Minute), *report.To)

	soc := report.Trends[models.MetricSoC]
	assert.Equal(t, DirectionDecreasing, soc.Direction)
	assert.InDelta(t, -10, soc.Slope, 1e-9)
	assert.Equal(t, 50.0, soc.Current)
	assert.InDelta(t, 65, soc.Mean, 1e-9)
	assert.InDelta(t, 11.180339887, soc.StdDev, 1e-6)

	assert.Equal(t, DirectionStable, report.Trends[models.MetricSoH].Direction)
	assert.Equal(t, DirectionIncreasing, report.Trends[models.MetricBatteryTemp].Direction)
	assert.InDelta(t, 2, report.Trends[models.MetricBatteryTemp].Slope, 1e-9)

	flat := report.Trends[models.MetricMotorTemp]
	assert.Equal(t, DirectionStable, flat.Direction)
	assert.Equal(t, 0.0, flat.StdDev)

	assert.Equal(t, DirectionIncreasing, report.Trends[models.MetricMotorVibration].Direction)
}

func TestAnalyzeTrendSkipsIncompleteMetric(t *testing.T) {
	readings := window(map[string][]float64{
		models.MetricSoC:       {50, 51, 52},
		models.MetricMotorTemp: {70, 71},
	})

	report := AnalyzeTrend(readings, 15)
	assert.Contains(t, report.Trends, models.MetricSoC)
	assert.NotContains(t, report.Trends, models.MetricMotorTemp)
	assert.NotContains(t, report.Trends, models.MetricSoH)
}

func TestAnalyzeTrendDoesNotMutateInput(t *testing.T) {
	readings := window(map[string][]float64{models.MetricSoC: {50, 40, 30}})
	before := readings[0].Readings[models.MetricSoC]

	AnalyzeTrend(readings, 10)
	assert.Equal(t, before, readings[0].Readings[models.MetricSoC])
	assert.Equal(t, start, readings[0].Timestamp)
}

func TestDetectOutliersMinimumSample(t *testing.T) {
	temps := []float64{25, 26, 25, 26, 25, 26, 25, 26, 95}
	outliers := DetectOutliers(window(map[string][]float64{models.MetricBatteryTemp: temps}))

	assert.NotNil(t, outliers)
	assert.Empty(t, outliers)
}

func TestDetectOutliersSingleSpike(t *testing.T) {
	temps := []float64{25, 26, 25, 26, 25, 26, 25, 26, 25, 95}
	outliers := DetectOutliers(window(map[string][]float64{models.MetricBatteryTemp: temps}))

	require.Len(t, outliers, 1)
	assert.Equal(t, Outlier{
		Metric:      models.MetricBatteryTemp,
		Type:        "statistical_outlier",
		Occurrences: 1,
		Severity:    models.SeverityMedium,
	}, outliers[0])
}

func TestDetectOutliersSkipsFlatAndIncompleteMetrics(t *testing.T) {
	flat := make([]float64, 12)
	for i := range flat {
		flat[i] = 70
	}
	spiky := []float64{1, 1.1, 1, 1.1, 1, 1.1, 1, 1.1, 1, 1.1, 9}

	outliers := DetectOutliers(window(map[string][]float64{
		models.MetricMotorTemp:        flat,
		models.MetricMotorVibration:   spiky,
		models.MetricPowerConsumption: spiky[:5],
	}))

	assert.Empty(t, outliers)
}

func TestDetectOutliersSpikeOnFlatBaseline(t *testing.T) {
	power := []float64{15, 15, 15, 15, 15, 15, 15, 15, 15, 15, 40}
	outliers := DetectOutliers(window(map[string][]float64{models.MetricPowerConsumption: power}))

	require.Len(t, outliers, 1)
	assert.Equal(t, models.MetricPowerConsumption, outliers[0].Metric)
	assert.Equal(t, 1, outliers[0].Occurrences)
}
