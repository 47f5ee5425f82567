// Package diagnosis turns anomalies and an optional model prediction into
// ranked issues and a maintenance plan.
package diagnosis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"ev-fleet-monitor/internal/anomaly"
	"ev-fleet-monitor/internal/metrics"
	"ev-fleet-monitor/internal/models"
)

// Diagnosis statuses.
const (
	StatusHealthy           = "healthy"
	StatusAtRisk            = "at_risk"
	StatusRequiresAttention = "requires_attention"
)

// Issue sources.
const (
	SourceML      = "ml_prediction"
	SourceAnomaly = "anomaly_detection"
)

// Issue is one diagnosed problem. The embedded Priority is nil until the
// issue has been through Prioritize.
type Issue struct {
	Component string          `json:"component"`
	Severity  models.Severity `json:"severity"`
	Source    string          `json:"source"`

	Confidence         *float64 `json:"confidence,omitempty"`
	RULHours           *float64 `json:"rul_hours,omitempty"`
	RULDays            *float64 `json:"rul_days,omitempty"`
	RecommendedAction  string   `json:"recommended_action,omitempty"`
	FailureProbability *float64 `json:"failure_probability,omitempty"`

	Metric    string   `json:"metric,omitempty"`
	Field     string   `json:"field,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`

	Repair      *RepairInfo `json:"repair_info,omitempty"`
	Explanation string      `json:"explanation,omitempty"`

	*Priority
}

// Diagnosis is the outcome of one Diagnose call.
type Diagnosis struct {
	VehicleID    string      `json:"vehicle_id"`
	Timestamp    time.Time   `json:"timestamp"`
	Status       string      `json:"status"`
	Issues       []Issue     `json:"issues"`
	MLPrediction *Prediction `json:"ml_prediction,omitempty"`
}

// Engine diagnoses snapshots. The predictor is optional; every failure to
// get a usable prediction degrades to an anomaly-only diagnosis.
type Engine struct {
	predictor Predictor
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates an engine. predictor and logger may be nil.
func NewEngine(predictor Predictor, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		predictor: predictor,
		logger:    logger,
		now:       time.Now,
	}
}

// Diagnose combines the predictor's view of snap with the anomalies already
// found in it. Issues are ordered by severity, ties in insertion order.
func (e *Engine) Diagnose(ctx context.Context, snap models.SensorSnapshot, anomalies []anomaly.Anomaly) Diagnosis {
	d := Diagnosis{
		VehicleID: snap.VehicleID,
		Timestamp: e.now().UTC(),
		Status:    StatusHealthy,
		Issues:    make([]Issue, 0),
	}

	if prediction := e.predict(ctx, snap); prediction != nil {
		d.MLPrediction = prediction
		if prediction.Status == PredictionAtRisk {
			d.Issues = append(d.Issues, mlIssue(prediction))
			d.Status = StatusAtRisk
		}
	}

	for _, a := range anomalies {
		if covered(d.Issues, a.System) {
			continue
		}
		d.Issues = append(d.Issues, anomalyIssue(a))
		if d.Status == StatusHealthy {
			d.Status = StatusRequiresAttention
		}
	}

	sort.SliceStable(d.Issues, func(i, j int) bool {
		return d.Issues[i].Severity.Rank() < d.Issues[j].Severity.Rank()
	})

	metrics.DiagnosesTotal.WithLabelValues(d.Status).Inc()
	return d
}

// predict returns nil whenever there is no usable at-risk or healthy verdict.
func (e *Engine) predict(ctx context.Context, snap models.SensorSnapshot) (prediction *Prediction) {
	if e.predictor == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.fallback(snap.VehicleID, "panic", fmt.Errorf("predictor panic: %v", r))
			prediction = nil
		}
	}()

	p, err := e.predictor.ComprehensiveDiagnosis(ctx, snap)
	switch {
	case err != nil:
		e.fallback(snap.VehicleID, "error", err)
		return nil
	case p == nil:
		e.fallback(snap.VehicleID, "empty", nil)
		return nil
	case p.Status == PredictionAtRisk && (p.ComponentDiagnosis == nil || p.RULEstimation == nil):
		e.fallback(snap.VehicleID, "malformed", nil)
		return nil
	}
	return p
}

func (e *Engine) fallback(vehicleID, reason string, err error) {
	metrics.PredictorFallbacksTotal.WithLabelValues(reason).Inc()
	e.logger.Warn("continuing without model prediction",
		zap.String("vehicle_id", vehicleID),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func covered(issues []Issue, component string) bool {
	for _, i := range issues {
		if i.Component == component {
			return true
		}
	}
	return false
}

func mlIssue(p *Prediction) Issue {
	rul := p.RULEstimation
	component := p.ComponentDiagnosis.Component
	return Issue{
		Component:          component,
		Severity:           severityForRUL(rul.RULHours),
		Source:             SourceML,
		Confidence:         models.Float(p.ComponentDiagnosis.Confidence),
		RULHours:           models.Float(rul.RULHours),
		RULDays:            models.Float(rul.RULDays),
		RecommendedAction:  rul.RecommendedAction,
		FailureProbability: models.Float(p.FailurePrediction.FailureProbability),
		Repair:             repairFor(component),
	}
}

func anomalyIssue(a anomaly.Anomaly) Issue {
	return Issue{
		Component:   a.System,
		Severity:    a.Severity,
		Source:      SourceAnomaly,
		Metric:      a.Metric,
		Field:       a.Field,
		Value:       models.Float(a.Value),
		Threshold:   models.Float(a.Threshold),
		Repair:      repairFor(a.System),
		Explanation: ExplainIssue(a.System, a.Metric),
	}
}

func severityForRUL(hours float64) models.Severity {
	switch {
	case hours < 48:
		return models.SeverityCritical
	case hours < 168:
		return models.SeverityHigh
	case hours < 720:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
