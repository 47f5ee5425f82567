package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ev-fleet-monitor/internal/db"
	"ev-fleet-monitor/internal/models"
	"ev-fleet-monitor/internal/monitor"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    *meta           `json:"meta"`
}

func newTestServer(t *testing.T) (*Server, *db.Database) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	svc := monitor.New(database, monitor.Options{})
	return NewServer(database, svc, nil), database
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func snapshotJSON(vehicleID string, ts time.Time, overrides map[string]float64) string {
	fields := map[string]interface{}{
		"vehicle_id":        vehicleID,
		"timestamp":         ts.Format(time.RFC3339),
		"soc":               75,
		"soh":               95,
		"battery_voltage":   400,
		"battery_current":   50,
		"battery_temp":      25,
		"motor_temp":        65,
		"motor_vibration":   0.5,
		"motor_torque":      250,
		"motor_rpm":         3000,
		"power_consumption": 15,
		"brake_pad_wear":    8,
		"brake_pressure":    100,
		"regen_efficiency":  85,
		"tire_pressure_fl":  35,
		"tire_pressure_fr":  35,
		"tire_pressure_rl":  35,
		"tire_pressure_rr":  35,
		"tire_temp_avg":     30,
		"suspension_load":   500,
		"distance_traveled": 1200,
	}
	for k, v := range overrides {
		fields[k] = v
	}
	data, _ := json.Marshal(fields)
	return string(data)
}

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "evmon_http_requests_total")
}

func TestVehicleEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := do(t, s, "POST", "/api/v1/vehicles", `{"id":"EV-00001"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, s, "POST", "/api/v1/vehicles", `{"id":"EV-00001","model":"Ioniq 5","year":2023,"vin":"KMHC8XXXXX0000001"}`)
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	rec, env = do(t, s, "GET", "/api/v1/vehicles/EV-00001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var v models.Vehicle
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, "Ioniq 5", v.Model)

	rec, _ = do(t, s, "GET", "/api/v1/vehicles/EV-09999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, s, "GET", "/api/v1/vehicles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Vehicle
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestTelemetryIngestAndQuery(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, "POST", "/api/v1/telemetry", snapshotJSON("EV-00001", t0, nil))
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	rec, env = do(t, s, "POST", "/api/v1/telemetry", snapshotJSON("EV-00001", t0, map[string]float64{"soc": 150}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "soc")

	batch := "[" + snapshotJSON("EV-00001", t0.Add(time.Minute), map[string]float64{"soc": 70}) + "," +
		snapshotJSON("EV-00002", t0, nil) + "]"
	rec, env = do(t, s, "POST", "/api/v1/telemetry/batch", batch)
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	var result monitor.IngestResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.EqualValues(t, 2, result.Accepted)

	rec, _ = do(t, s, "POST", "/api/v1/telemetry/batch", "[]")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, s, "GET", "/api/v1/telemetry?vehicle_id=EV-00001&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Total)

	rec, _ = do(t, s, "GET", "/api/v1/telemetry?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, s, "GET", "/api/v1/telemetry/latest/EV-00001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest models.SensorSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &latest))
	assert.Equal(t, 70.0, latest.Readings[models.MetricSoC])

	rec, _ = do(t, s, "GET", "/api/v1/telemetry/latest/EV-09999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, s, "GET", "/api/v1/telemetry/summary/EV-00001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.ReadingSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 2, summary.TotalRecords)
}

func TestAnalyzeSnapshot(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, "POST", "/api/v1/analyze", snapshotJSON("EV-00001", t0, map[string]float64{"brake_pressure": 40}))
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	var result struct {
		Status   string `json:"status"`
		Severity string `json:"severity"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "Anomaly Detected", result.Status)
	assert.Equal(t, "Critical", result.Severity)

	rec, env = do(t, s, "POST", "/api/v1/analyze", `{"vehicle_id":"EV-00001","soc":50}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, env.Success)
}

func TestDiagnosisRaisesAlert(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, "POST", "/api/v1/telemetry", snapshotJSON("EV-00007", t0, map[string]float64{"brake_pressure": 40}))
	require.Equal(t, http.StatusCreated, rec.Code, env.Error)

	rec, env = do(t, s, "POST", "/api/v1/diagnosis/EV-00007", "")
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	var report monitor.DiagnosisReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "emergency", report.MaintenancePlan.PlanType)
	require.NotEmpty(t, report.AlertID)

	rec, env = do(t, s, "GET", "/api/v1/alerts/EV-00007?unresolved=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []models.Alert
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, report.AlertID, alerts[0].ID)

	rec, _ = do(t, s, "POST", "/api/v1/alerts/"+report.AlertID+"/resolve", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, "POST", "/api/v1/alerts/missing/resolve", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(t, s, "GET", "/api/v1/alerts?unresolved=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	assert.Empty(t, alerts)

	rec, _ = do(t, s, "POST", "/api/v1/diagnosis/EV-09999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSensorAnalysisEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	for i, soc := range []float64{80, 70, 60} {
		rec, env := do(t, s, "POST", "/api/v1/telemetry",
			snapshotJSON("EV-00003", t0.Add(time.Duration(i)*time.Minute), map[string]float64{"soc": soc}))
		require.Equal(t, http.StatusCreated, rec.Code, env.Error)
	}

	rec, env := do(t, s, "GET", "/api/v1/sensor/EV-00003/trends", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var trends struct {
		Status string `json:"status"`
		Trends map[string]struct {
			Direction string `json:"direction"`
		} `json:"trends"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &trends))
	assert.Equal(t, "ok", trends.Status)
	assert.Equal(t, "decreasing", trends.Trends["soc"].Direction)

	rec, env = do(t, s, "GET", "/api/v1/sensor/EV-00003/outliers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var outliers struct {
		PatternAnomalies []interface{} `json:"pattern_anomalies"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &outliers))
	assert.NotNil(t, outliers.PatternAnomalies)
	assert.Empty(t, outliers.PatternAnomalies)

	rec, _ = do(t, s, "GET", "/api/v1/sensor/EV-00003/analyze", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, s, "GET", "/api/v1/vehicles/EV-00003/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		VehicleID string `json:"vehicle_id"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.Equal(t, "EV-00003", health.VehicleID)
	assert.NotEmpty(t, health.Status)

	rec, env = do(t, s, "GET", "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]float64
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 3.0, stats["total_sensor_readings"])
}

func TestInsightsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, "GET", "/api/v1/insights", "")
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	var insights monitor.FleetInsights
	require.NoError(t, json.Unmarshal(env.Data, &insights))
	assert.Equal(t, monitor.InsightsNoData, insights.Status)

	for _, id := range []string{"EV-00007", "EV-00008"} {
		rec, env = do(t, s, "POST", "/api/v1/telemetry", snapshotJSON(id, t0, map[string]float64{"brake_pressure": 40}))
		require.Equal(t, http.StatusCreated, rec.Code, env.Error)
		rec, env = do(t, s, "POST", "/api/v1/diagnosis/"+id, "")
		require.Equal(t, http.StatusOK, rec.Code, env.Error)
	}

	rec, env = do(t, s, "GET", "/api/v1/insights", "")
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &insights))
	assert.Equal(t, monitor.InsightsOK, insights.Status)
	assert.Equal(t, int64(2), insights.TotalAlerts)
	assert.Equal(t, map[string]int64{"Brake": 2}, insights.ComponentDistribution)
	assert.Equal(t, map[string]int64{"Hydraulic Pressure": 2}, insights.IssueTypes)
	assert.Equal(t, 200.0, insights.AverageRepairCost)
	assert.Equal(t, []string{"Brake"}, insights.HighRiskComponents)
	assert.Contains(t, insights.Summary, "Brake (2 cases)")
}
