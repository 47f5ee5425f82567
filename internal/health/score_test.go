package health

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ev-fleet-monitor/internal/models"
)

func snapshot(overrides models.Readings) models.SensorSnapshot {
	r := models.Readings{
		models.MetricSoH:             95,
		models.MetricSoC:             75,
		models.MetricMotorTemp:       60,
		models.MetricMotorVibration:  0.5,
		models.MetricBrakePadWear:    6,
		models.MetricRegenEfficiency: 90,
		models.MetricTirePressureFL:  35,
		models.MetricTirePressureFR:  36,
		models.MetricTirePressureRL:  34,
		models.MetricTirePressureRR:  35,
		models.MetricDistance:        12345.6,
	}
	for k, v := range overrides {
		r[k] = v
	}
	return models.SensorSnapshot{
		VehicleID: "EV-00007",
		Timestamp: time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC),
		Readings:  r,
	}
}

func TestScore(t *testing.T) {
	s, err := Score(snapshot(nil))
	require.NoError(t, err)

	assert.InDelta(t, 85, s.Battery, 1e-9)
	assert.InDelta(t, 60, s.Motor, 1e-9)
	assert.InDelta(t, 70, s.Brake, 1e-9)
	assert.InDelta(t, 34.0/35*100, s.Tire, 1e-9)
	assert.InDelta(t, (85+60+70+34.0/35*100)/4, s.Overall, 1e-9)
	assert.Equal(t, StatusGood, s.Status)
}

func TestScoreClamps(t *testing.T) {
	s, err := Score(snapshot(models.Readings{
		models.MetricSoH:             110,
		models.MetricSoC:             100,
		models.MetricMotorTemp:       200,
		models.MetricMotorVibration:  5,
		models.MetricBrakePadWear:    24,
		models.MetricRegenEfficiency: 100,
		models.MetricTirePressureFL:  40,
		models.MetricTirePressureFR:  40,
		models.MetricTirePressureRL:  40,
		models.MetricTirePressureRR:  40,
	}))
	require.NoError(t, err)

	assert.Equal(t, 100.0, s.Battery)
	assert.Equal(t, 0.0, s.Motor)
	assert.Equal(t, 100.0, s.Brake)
	assert.Equal(t, 100.0, s.Tire)
	assert.Equal(t, 75.0, s.Overall)
	assert.Equal(t, StatusFair, s.Status)
}

func TestStatusThresholdsAreStrict(t *testing.T) {
	tests := []struct {
		overall  float64
		expected string
	}{
		{90.0001, StatusExcellent},
		{90, StatusGood},
		{75.5, StatusGood},
		{75, StatusFair},
		{60, StatusPoor},
		{0, StatusPoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusFor(tt.overall), "overall=%v", tt.overall)
	}
}

func TestScoreDeterministic(t *testing.T) {
	snap := snapshot(models.Readings{models.MetricSoC: 33.3})
	first, err := Score(snap)
	require.NoError(t, err)
	second, err := Score(snap)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScoreMissingField(t *testing.T) {
	snap := snapshot(nil)
	delete(snap.Readings, models.MetricTirePressureRL)

	_, err := Score(snap)
	var missing *models.MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, models.MetricTirePressureRL, missing.Field)

	_, err = Summarize(snap)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	snap := snapshot(nil)
	sum, err := Summarize(snap)
	require.NoError(t, err)

	assert.Equal(t, "EV-00007", sum.VehicleID)
	assert.Equal(t, 78.04, sum.OverallHealth)
	assert.Equal(t, 97.14, sum.ComponentHealth.Tire)
	assert.Equal(t, 85.0, sum.ComponentHealth.Battery)
	assert.Equal(t, snap.Timestamp, sum.LastUpdated)
	assert.Equal(t, 12345.6, sum.DistanceTraveled)
	assert.Equal(t, StatusGood, sum.Status)
}
