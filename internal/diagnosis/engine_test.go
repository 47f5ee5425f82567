package diagnosis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ev-fleet-monitor/internal/anomaly"
	"ev-fleet-monitor/internal/models"
)

var fixedNow = time.Date(2025, 5, 10, 14, 0, 0, 0, time.UTC)

type predictorFunc func(ctx context.Context, snap models.SensorSnapshot) (*Prediction, error)

func (f predictorFunc) ComprehensiveDiagnosis(ctx context.Context, snap models.SensorSnapshot) (*Prediction, error) {
	return f(ctx, snap)
}

func atRisk(component string, rulHours float64) predictorFunc {
	return func(context.Context, models.SensorSnapshot) (*Prediction, error) {
		return &Prediction{
			Status:             PredictionAtRisk,
			FailurePrediction:  FailurePrediction{WillFail: true, FailureProbability: 0.82, Confidence: 0.82},
			ComponentDiagnosis: &ComponentDiagnosis{Component: component, Confidence: 0.7, Method: "rule-based"},
			RULEstimation:      &RULEstimation{RULHours: rulHours, RULDays: rulHours / 24, RecommendedAction: "immediate"},
		}, nil
	}
}

func newTestEngine(p Predictor) *Engine {
	e := NewEngine(p, nil)
	e.now = func() time.Time { return fixedNow }
	return e
}

func snap() models.SensorSnapshot {
	return models.SensorSnapshot{VehicleID: "EV-00003", Readings: models.Readings{}}
}

func sampleAnomalies() []anomaly.Anomaly {
	return []anomaly.Anomaly{
		{System: "Tire", Metric: "Pressure", Field: models.MetricTirePressureFL, Value: 25, Threshold: 28, Severity: models.SeverityMedium},
		{System: "Battery", Metric: "State of Health", Field: models.MetricSoH, Value: 70, Threshold: 75, Severity: models.SeverityHigh},
		{System: "Battery", Metric: "Temperature", Field: models.MetricBatteryTemp, Value: 65, Threshold: 50, Severity: models.SeverityCritical},
		{System: "Motor", Metric: "Vibration", Field: models.MetricMotorVibration, Value: 1.9, Threshold: 1.5, Severity: models.SeverityMedium},
	}
}

func components(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Component
	}
	return out
}

func TestDiagnoseHealthy(t *testing.T) {
	d := newTestEngine(nil).Diagnose(context.Background(), snap(), nil)

	assert.Equal(t, StatusHealthy, d.Status)
	assert.NotNil(t, d.Issues)
	assert.Empty(t, d.Issues)
	assert.Equal(t, fixedNow, d.Timestamp)
	assert.Nil(t, d.MLPrediction)

	plan := BuildPlan(d)
	assert.Equal(t, PlanPreventive, plan.PlanType)
	assert.Equal(t, CostRange{}, plan.TotalCost)
	assert.Zero(t, plan.TotalDurationHours)
	assert.Empty(t, plan.Tasks)
	assert.Equal(t, "Vehicle EV-00003 is operating normally. All systems are within acceptable parameters.", FallbackReport(d))
}

func TestDiagnoseAnomaliesOnly(t *testing.T) {
	d := newTestEngine(nil).Diagnose(context.Background(), snap(), sampleAnomalies())

	assert.Equal(t, StatusRequiresAttention, d.Status)
	// First anomaly per component wins, then severity order with ties stable.
	assert.Equal(t, []string{"Battery", "Tire", "Motor"}, components(d.Issues))
	assert.Equal(t, models.SeverityHigh, d.Issues[0].Severity)
	assert.Equal(t, SourceAnomaly, d.Issues[0].Source)
	assert.Equal(t, 70.0, *d.Issues[0].Value)
	assert.Equal(t, 75.0, *d.Issues[0].Threshold)
	require.NotNil(t, d.Issues[0].Repair)
	assert.Equal(t, CostRange{500, 3000}, d.Issues[0].Repair.CostRange)
	assert.Nil(t, d.Issues[0].Priority)
}

func TestDiagnoseWithPrediction(t *testing.T) {
	d := newTestEngine(atRisk("Battery", 30)).Diagnose(context.Background(), snap(), sampleAnomalies())

	assert.Equal(t, StatusAtRisk, d.Status)
	require.NotNil(t, d.MLPrediction)
	assert.Equal(t, []string{"Battery", "Tire", "Motor"}, components(d.Issues))

	ml := d.Issues[0]
	assert.Equal(t, SourceML, ml.Source)
	assert.Equal(t, models.SeverityCritical, ml.Severity)
	assert.Equal(t, 0.7, *ml.Confidence)
	assert.Equal(t, 30.0, *ml.RULHours)
	assert.Equal(t, 1.25, *ml.RULDays)
	assert.Equal(t, 0.82, *ml.FailureProbability)
	assert.Equal(t, "immediate", ml.RecommendedAction)
}

func TestRULSeverityMapping(t *testing.T) {
	tests := []struct {
		hours    float64
		expected models.Severity
	}{
		{0, models.SeverityCritical},
		{47.9, models.SeverityCritical},
		{48, models.SeverityHigh},
		{167.9, models.SeverityHigh},
		{168, models.SeverityMedium},
		{719, models.SeverityMedium},
		{720, models.SeverityLow},
	}
	for _, tt := range tests {
		d := newTestEngine(atRisk("Motor", tt.hours)).Diagnose(context.Background(), snap(), nil)
		require.Len(t, d.Issues, 1)
		assert.Equal(t, tt.expected, d.Issues[0].Severity, "rul=%v", tt.hours)
	}
}

func TestPredictorFailureMatchesAbsentPredictor(t *testing.T) {
	baseline := newTestEngine(nil).Diagnose(context.Background(), snap(), sampleAnomalies())

	failing := map[string]Predictor{
		"error": predictorFunc(func(context.Context, models.SensorSnapshot) (*Prediction, error) {
			return nil, errors.New("model unavailable")
		}),
		"panic": predictorFunc(func(context.Context, models.SensorSnapshot) (*Prediction, error) {
			panic("boom")
		}),
		"nil result": predictorFunc(func(context.Context, models.SensorSnapshot) (*Prediction, error) {
			return nil, nil
		}),
		"malformed": predictorFunc(func(context.Context, models.SensorSnapshot) (*Prediction, error) {
			return &Prediction{Status: PredictionAtRisk}, nil
		}),
		"no prediction": NewRulePredictor(),
	}

	for name, p := range failing {
		t.Run(name, func(t *testing.T) {
			d := newTestEngine(p).Diagnose(context.Background(), snap(), sampleAnomalies())
			assert.Equal(t, baseline.Issues, d.Issues)
			assert.Equal(t, baseline.Status, d.Status)
			assert.Nil(t, d.MLPrediction)
		})
	}
}

func TestHealthyPredictionKeepsAnomalyStatus(t *testing.T) {
	healthy := predictorFunc(func(context.Context, models.SensorSnapshot) (*Prediction, error) {
		return &Prediction{Status: PredictionHealthy, FailurePrediction: FailurePrediction{FailureProbability: 0.1, Confidence: 0.9}}, nil
	})

	d := newTestEngine(healthy).Diagnose(context.Background(), snap(), sampleAnomalies()[:1])
	assert.Equal(t, StatusRequiresAttention, d.Status)
	require.NotNil(t, d.MLPrediction)
	assert.Equal(t, PredictionHealthy, d.MLPrediction.Status)
}

func TestFallbackReportNamesPrimaryConcern(t *testing.T) {
	d := newTestEngine(nil).Diagnose(context.Background(), snap(), sampleAnomalies())
	assert.Equal(t,
		"Diagnostic Report: Vehicle EV-00003 has 3 issues requiring attention. Primary concern: Battery (High severity).",
		FallbackReport(d))
}

func TestFirstAnomalyPerComponentWins(t *testing.T) {
	anomalies := []anomaly.Anomaly{
		{System: "Brake", Metric: "Pad Wear", Field: models.MetricBrakePadWear, Value: 1.5, Threshold: 2, Severity: models.SeverityHigh},
		{System: "Brake", Metric: "Hydraulic Pressure", Field: models.MetricBrakePressure, Value: 40, Threshold: 60, Severity: models.SeverityCritical},
	}

	d := newTestEngine(nil).Diagnose(context.Background(), snap(), anomalies)

	require.Len(t, d.Issues, 1)
	assert.Equal(t, "Pad Wear", d.Issues[0].Metric)
	assert.Equal(t, models.SeverityHigh, d.Issues[0].Severity)
	assert.Equal(t, StatusRequiresAttention, d.Status)
}

func TestAnomalyIssuesCarryExplanation(t *testing.T) {
	d := newTestEngine(atRisk("Motor", 100)).Diagnose(context.Background(), snap(), sampleAnomalies())

	byComponent := make(map[string]Issue)
	for _, issue := range d.Issues {
		byComponent[issue.Component] = issue
	}
	assert.Contains(t, byComponent["Battery"].Explanation, "original capacity")
	assert.Equal(t, defaultExplanation, byComponent["Tire"].Explanation)
	assert.Empty(t, byComponent["Motor"].Explanation)
}

func TestExplainIssue(t *testing.T) {
	assert.Contains(t, ExplainIssue("Brake", "Hydraulic Pressure"), "safety critical")
	assert.Contains(t, ExplainIssue("Motor", "Vibration"), "bearings")
	assert.Equal(t, defaultExplanation, ExplainIssue("Brake", "Squeal"))
	assert.Equal(t, defaultExplanation, ExplainIssue("Cooling", "Temperature"))
}
