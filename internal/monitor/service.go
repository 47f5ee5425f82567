// Package monitor wires storage, the detectors and the diagnosis engine
// into the per-vehicle operations served by the API and CLI.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ev-fleet-monitor/internal/analytics"
	"ev-fleet-monitor/internal/anomaly"
	"ev-fleet-monitor/internal/diagnosis"
	"ev-fleet-monitor/internal/health"
	"ev-fleet-monitor/internal/metrics"
	"ev-fleet-monitor/internal/models"
	"ev-fleet-monitor/internal/parser"
)

// AlertTypeCritical marks alerts raised by a diagnosis with a Critical issue.
const AlertTypeCritical = "critical_diagnosis"

// IssuePredictedFailure is the issue recorded for alerts raised from a model
// prediction rather than a threshold violation.
const IssuePredictedFailure = "Predicted Failure"

// Insight statuses.
const (
	InsightsOK     = "ok"
	InsightsNoData = "no_data"
)

// Store is the persistence the service needs.
type Store interface {
	GetLatestReading(ctx context.Context, vehicleID string) (*models.SensorSnapshot, error)
	GetReadingWindow(ctx context.Context, vehicleID string, n int) ([]models.SensorSnapshot, error)
	InsertReadingBatch(ctx context.Context, records []models.SensorSnapshot) (int64, error)
	InsertAlert(ctx context.Context, a *models.Alert) error
	GetAlertInsights(ctx context.Context) (*models.AlertInsights, error)
}

// Cache holds diagnosis reports between ingests.
type Cache interface {
	Save(ctx context.Context, vehicleID string, v interface{}) error
	Load(ctx context.Context, vehicleID string, dst interface{}) (bool, error)
	Invalidate(ctx context.Context, vehicleID string) error
}

// Options configures a Service. Zero values fall back to defaults; Cache
// and Predictor are optional.
type Options struct {
	Cache              Cache
	Predictor          diagnosis.Predictor
	Logger             *zap.Logger
	WindowSize         int
	TrendWindowMinutes int
}

// Service is safe for concurrent use.
type Service struct {
	store        Store
	cache        Cache
	detector     *anomaly.Detector
	engine       *diagnosis.Engine
	logger       *zap.Logger
	windowSize   int
	trendMinutes int
	newID        func() string
	now          func() time.Time
}

// New creates a Service over store.
func New(store Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = 100
	}
	if opts.TrendWindowMinutes <= 0 {
		opts.TrendWindowMinutes = 60
	}
	return &Service{
		store:        store,
		cache:        opts.Cache,
		detector:     anomaly.NewDetector(),
		engine:       diagnosis.NewEngine(opts.Predictor, logger.Named("diagnosis")),
		logger:       logger,
		windowSize:   opts.WindowSize,
		trendMinutes: opts.TrendWindowMinutes,
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// AnalysisReport is the result of analysing a vehicle's latest reading.
type AnalysisReport struct {
	Analysis         anomaly.Result      `json:"analysis"`
	PatternAnomalies []analytics.Outlier `json:"pattern_anomalies"`
	Report           string              `json:"report"`
}

// DiagnosisReport is the full diagnosis output for one vehicle.
type DiagnosisReport struct {
	Diagnosis       diagnosis.Diagnosis       `json:"diagnosis"`
	MaintenancePlan diagnosis.MaintenancePlan `json:"maintenance_plan"`
	Report          string                    `json:"report"`
	AlertID         string                    `json:"alert_id,omitempty"`
	Cached          bool                      `json:"cached"`
}

// FleetInsights is the quality view over every alert raised so far.
type FleetInsights struct {
	Status string `json:"status"`
	models.AlertInsights
	Summary     string    `json:"summary,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// IngestResult summarises an Ingest call.
type IngestResult struct {
	Accepted int64    `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// Detect checks a single snapshot without touching storage.
func (s *Service) Detect(snap models.SensorSnapshot) (anomaly.Result, error) {
	result, err := s.detector.Detect(snap)
	if err != nil {
		return result, err
	}
	for _, a := range result.Anomalies {
		metrics.AnomaliesDetectedTotal.WithLabelValues(a.System, string(a.Severity)).Inc()
	}
	return result, nil
}

// Analyze checks the vehicle's latest reading and scans its recent window
// for statistical outliers.
func (s *Service) Analyze(ctx context.Context, vehicleID string) (*AnalysisReport, error) {
	latest, err := s.store.GetLatestReading(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	result, err := s.Detect(*latest)
	if err != nil {
		return nil, err
	}

	outliers, err := s.Outliers(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	return &AnalysisReport{
		Analysis:         result,
		PatternAnomalies: outliers,
		Report:           anomaly.FallbackReport(result),
	}, nil
}

// Diagnose returns the cached report for the vehicle if there is one,
// otherwise diagnoses its latest reading, raises an alert when any issue is
// Critical and caches the result.
func (s *Service) Diagnose(ctx context.Context, vehicleID string) (*DiagnosisReport, error) {
	if cached := s.cached(ctx, vehicleID); cached != nil {
		return cached, nil
	}

	latest, err := s.store.GetLatestReading(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	result, err := s.Detect(*latest)
	if err != nil {
		return nil, err
	}

	d := s.engine.Diagnose(ctx, *latest, result.Anomalies)
	report := &DiagnosisReport{
		Diagnosis:       d,
		MaintenancePlan: diagnosis.BuildPlan(d),
		Report:          diagnosis.FallbackReport(d),
	}
	report.AlertID = s.raiseAlert(ctx, report)

	if s.cache != nil {
		if err := s.cache.Save(ctx, vehicleID, report); err != nil {
			s.logger.Warn("failed to cache diagnosis", zap.String("vehicle_id", vehicleID), zap.Error(err))
		}
	}
	return report, nil
}

func (s *Service) cached(ctx context.Context, vehicleID string) *DiagnosisReport {
	if s.cache == nil {
		return nil
	}
	var report DiagnosisReport
	found, err := s.cache.Load(ctx, vehicleID, &report)
	switch {
	case err != nil:
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("diagnosis cache lookup failed", zap.String("vehicle_id", vehicleID), zap.Error(err))
		return nil
	case !found:
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	report.Cached = true
	return &report
}

// raiseAlert persists an alert for a diagnosis whose top issue is Critical.
// Failures are logged, not returned.
func (s *Service) raiseAlert(ctx context.Context, report *DiagnosisReport) string {
	issues := report.Diagnosis.Issues
	if len(issues) == 0 || issues[0].Severity != models.SeverityCritical {
		return ""
	}
	primary := issues[0]

	alert := &models.Alert{
		ID:        s.newID(),
		VehicleID: report.Diagnosis.VehicleID,
		AlertType: AlertTypeCritical,
		Severity:  models.SeverityCritical,
		Component: primary.Component,
		Message:   report.Report,
		CreatedAt: report.Diagnosis.Timestamp,
	}
	if primary.Metric != "" {
		alert.Issue = primary.Metric
	} else {
		alert.Issue = IssuePredictedFailure
	}
	if primary.Repair != nil {
		alert.EstimatedCost = primary.Repair.CostRange.Min
		if len(primary.Repair.CommonFixes) > 0 {
			alert.Recommendation = primary.Repair.CommonFixes[0]
		}
	}

	if err := s.store.InsertAlert(ctx, alert); err != nil {
		s.logger.Error("failed to persist alert",
			zap.String("vehicle_id", alert.VehicleID),
			zap.String("component", alert.Component),
			zap.Error(err),
		)
		return ""
	}
	metrics.AlertsCreatedTotal.WithLabelValues(alert.Component).Inc()
	s.logger.Info("critical alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("vehicle_id", alert.VehicleID),
		zap.String("component", alert.Component),
	)
	return alert.ID
}

// Trends fits trends over the vehicle's recent window. A vehicle with too
// little history gets an insufficient_data report, not an error.
func (s *Service) Trends(ctx context.Context, vehicleID string) (analytics.TrendReport, error) {
	window, err := s.store.GetReadingWindow(ctx, vehicleID, s.windowSize)
	if err != nil {
		return analytics.TrendReport{}, err
	}
	report := analytics.AnalyzeTrend(window, s.trendMinutes)
	report.VehicleID = vehicleID
	return report, nil
}

// Outliers scans the vehicle's recent window for statistical outliers.
func (s *Service) Outliers(ctx context.Context, vehicleID string) ([]analytics.Outlier, error) {
	window, err := s.store.GetReadingWindow(ctx, vehicleID, s.windowSize)
	if err != nil {
		return nil, err
	}
	return analytics.DetectOutliers(window), nil
}

// Health scores the vehicle's latest reading.
func (s *Service) Health(ctx context.Context, vehicleID string) (health.Summary, error) {
	latest, err := s.store.GetLatestReading(ctx, vehicleID)
	if err != nil {
		return health.Summary{}, err
	}
	return health.Summarize(*latest)
}

// Insights aggregates the fleet's alert history into failure distributions,
// the average repair cost and the components alerted most often.
func (s *Service) Insights(ctx context.Context) (*FleetInsights, error) {
	agg, err := s.store.GetAlertInsights(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate alerts: %w", err)
	}

	out := &FleetInsights{Status: InsightsOK, AlertInsights: *agg, GeneratedAt: s.now().UTC()}
	if agg.TotalAlerts == 0 {
		out.Status = InsightsNoData
		return out, nil
	}
	out.Summary = insightSummary(agg)
	return out, nil
}

// insightSummary names the three most alerted components.
func insightSummary(in *models.AlertInsights) string {
	top := in.HighRiskComponents
	if len(top) > 3 {
		top = top[:3]
	}
	concerns := make([]string, len(top))
	for i, c := range top {
		n := in.ComponentDistribution[c]
		unit := "cases"
		if n == 1 {
			unit = "case"
		}
		concerns[i] = fmt.Sprintf("%s (%d %s)", c, n, unit)
	}
	return fmt.Sprintf("Quality analysis: %d alerts recorded with an average repair cost of $%.2f. "+
		"Top concerns: %s. Manufacturing and supplier processes for these components should be reviewed.",
		in.TotalAlerts, in.AverageRepairCost, strings.Join(concerns, ", "))
}

// Ingest validates and stores snapshots, then drops cached diagnoses for
// every vehicle that received new data. Invalid snapshots are reported and
// skipped.
func (s *Service) Ingest(ctx context.Context, snaps []models.SensorSnapshot, source string) (IngestResult, error) {
	var result IngestResult
	valid := make([]models.SensorSnapshot, 0, len(snaps))
	for i := range snaps {
		if problems := parser.ValidateSnapshot(&snaps[i]); len(problems) > 0 {
			result.Rejected++
			result.Errors = append(result.Errors, fmt.Sprintf("record %d (%s): %v", i, snaps[i].VehicleID, problems))
			continue
		}
		valid = append(valid, snaps[i])
	}
	if len(valid) == 0 {
		return result, nil
	}

	n, err := s.store.InsertReadingBatch(ctx, valid)
	if err != nil {
		return result, fmt.Errorf("failed to store readings: %w", err)
	}
	result.Accepted = n
	metrics.ReadingsIngestedTotal.WithLabelValues(source).Add(float64(n))

	if s.cache != nil {
		seen := make(map[string]bool)
		for _, snap := range valid {
			if seen[snap.VehicleID] {
				continue
			}
			seen[snap.VehicleID] = true
			if err := s.cache.Invalidate(ctx, snap.VehicleID); err != nil {
				s.logger.Warn("failed to invalidate cached diagnosis", zap.String("vehicle_id", snap.VehicleID), zap.Error(err))
			}
		}
	}

	s.logger.Debug("readings ingested", zap.String("source", source), zap.Int64("accepted", n), zap.Int("rejected", result.Rejected))
	return result, nil
}
