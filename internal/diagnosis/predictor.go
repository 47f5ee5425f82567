package diagnosis

import (
	"context"
	"errors"
	"fmt"

	"ev-fleet-monitor/internal/models"
)

// Prediction statuses.
const (
	PredictionHealthy = "healthy"
	PredictionAtRisk  = "at_risk"
)

// ErrNoPrediction is returned by a predictor that has nothing to say about a snapshot.
var ErrNoPrediction = errors.New("no failure prediction available")

// Predictor is an optional failure and remaining-useful-life model.
type Predictor interface {
	ComprehensiveDiagnosis(ctx context.Context, snap models.SensorSnapshot) (*Prediction, error)
}

// Prediction is a predictor's view of one snapshot. ComponentDiagnosis and
// RULEstimation are set only when Status is at_risk.
type Prediction struct {
	Status             string              `json:"status"`
	FailurePrediction  FailurePrediction   `json:"failure_prediction"`
	ComponentDiagnosis *ComponentDiagnosis `json:"component_diagnosis,omitempty"`
	RULEstimation      *RULEstimation      `json:"rul_estimation,omitempty"`
}

type FailurePrediction struct {
	WillFail           bool    `json:"will_fail"`
	FailureProbability float64 `json:"failure_probability"`
	Confidence         float64 `json:"confidence"`
}

type ComponentDiagnosis struct {
	Component  string  `json:"component"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

type RULEstimation struct {
	RULHours          float64 `json:"rul_hours"`
	RULDays           float64 `json:"rul_days"`
	RecommendedAction string  `json:"recommended_action"`
}

type condition struct {
	metric string
	hit    func(v float64) bool
}

type componentRule struct {
	component  string
	weight     float64
	conditions []condition
}

func below(metric string, limit float64) condition {
	return condition{metric, func(v float64) bool { return v < limit }}
}

func above(metric string, limit float64) condition {
	return condition{metric, func(v float64) bool { return v > limit }}
}

func atLeast(metric string, limit float64) condition {
	return condition{metric, func(v float64) bool { return v >= limit }}
}

func outside(metric string, lo, hi float64) condition {
	return condition{metric, func(v float64) bool { return v < lo || v > hi }}
}

// Evaluated in order; on equal scores the earlier component wins.
var componentRules = []componentRule{
	{ComponentBattery, 0.3, []condition{
		below(models.MetricSoH, 75),
		above(models.MetricBatteryTemp, 50),
		outside(models.MetricBatteryVoltage, 350, 450),
	}},
	{ComponentMotor, 0.25, []condition{
		above(models.MetricMotorTemp, 90),
		above(models.MetricMotorVibration, 1.5),
	}},
	{ComponentBrake, 0.2, []condition{
		below(models.MetricBrakePadWear, 3),
		below(models.MetricBrakePressure, 70),
		below(models.MetricRegenEfficiency, 60),
	}},
	{ComponentTire, 0.15, []condition{
		below(models.MetricTirePressureFL, 28),
		above(models.MetricTireTemp, 45),
	}},
	{ComponentSuspension, 0.1, []condition{
		above(models.MetricSuspensionLoad, 700),
		atLeast(models.MetricRouteRoughness, 2),
	}},
}

const (
	ruleConfidence   = 0.7
	ruleMethod       = "rule-based"
	noFailureFound   = "Normal"
	failureThreshold = 0.5
)

// RulePredictor predicts from the failure probability and RUL estimate a
// snapshot already carries, and attributes the risk to a component with
// weighted condition scoring.
type RulePredictor struct{}

// NewRulePredictor returns a RulePredictor.
func NewRulePredictor() *RulePredictor {
	return &RulePredictor{}
}

// ComprehensiveDiagnosis returns ErrNoPrediction when the snapshot carries
// no failure probability, or an at-risk snapshot carries no RUL estimate.
func (p *RulePredictor) ComprehensiveDiagnosis(ctx context.Context, snap models.SensorSnapshot) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if snap.FailureProbability == nil {
		return nil, ErrNoPrediction
	}

	prob := *snap.FailureProbability
	failure := FailurePrediction{
		WillFail:           prob > failureThreshold,
		FailureProbability: prob,
		Confidence:         max(prob, 1-prob),
	}
	if !failure.WillFail {
		return &Prediction{Status: PredictionHealthy, FailurePrediction: failure}, nil
	}

	if snap.EstimatedRULHours == nil {
		return nil, fmt.Errorf("vehicle %s: %w: missing RUL estimate", snap.VehicleID, ErrNoPrediction)
	}
	component, err := identifyComponent(snap)
	if err != nil {
		return nil, err
	}

	return &Prediction{
		Status:            PredictionAtRisk,
		FailurePrediction: failure,
		ComponentDiagnosis: &ComponentDiagnosis{
			Component:  component,
			Confidence: ruleConfidence,
			Method:     ruleMethod,
		},
		RULEstimation: estimateRUL(*snap.EstimatedRULHours),
	}, nil
}

func identifyComponent(snap models.SensorSnapshot) (string, error) {
	best, bestScore := noFailureFound, 0.0
	for _, rule := range componentRules {
		hits := 0
		for _, c := range rule.conditions {
			v, err := snap.Value(c.metric)
			if err != nil {
				return "", err
			}
			if c.hit(v) {
				hits++
			}
		}
		if score := float64(hits) * rule.weight; score > bestScore {
			best, bestScore = rule.component, score
		}
	}
	return best, nil
}

func estimateRUL(hours float64) *RULEstimation {
	action := "monitor"
	switch {
	case hours < 48:
		action = "immediate"
	case hours < 168:
		action = "schedule_soon"
	}
	hours = max(0, hours)
	return &RULEstimation{
		RULHours:          hours,
		RULDays:           hours / 24,
		RecommendedAction: action,
	}
}
