package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ev-fleet-monitor/internal/db"
	"ev-fleet-monitor/internal/metrics"
	"ev-fleet-monitor/internal/models"
	"ev-fleet-monitor/internal/monitor"
)

// Server represents the API server
type Server struct {
	db      *db.Database
	monitor *monitor.Service
	logger  *zap.Logger
	router  *mux.Router
}

// NewServer creates a new API server
func NewServer(database *db.Database, svc *monitor.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		db:      database,
		monitor: svc,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Vehicle endpoints
	s.router.HandleFunc("/api/v1/vehicles", s.handleListVehicles).Methods("GET")
	s.router.HandleFunc("/api/v1/vehicles", s.handleCreateVehicle).Methods("POST")
	s.router.HandleFunc("/api/v1/vehicles/{id}", s.handleGetVehicle).Methods("GET")
	s.router.HandleFunc("/api/v1/vehicles/{id}/health", s.handleVehicleHealth).Methods("GET")

	// Telemetry endpoints
	s.router.HandleFunc("/api/v1/telemetry", s.handleQueryTelemetry).Methods("GET")
	s.router.HandleFunc("/api/v1/telemetry", s.handleCreateTelemetry).Methods("POST")
	s.router.HandleFunc("/api/v1/telemetry/batch", s.handleBatchTelemetry).Methods("POST")
	s.router.HandleFunc("/api/v1/telemetry/latest/{vehicle_id}", s.handleLatestTelemetry).Methods("GET")
	s.router.HandleFunc("/api/v1/telemetry/summary/{vehicle_id}", s.handleTelemetrySummary).Methods("GET")

	// Analysis endpoints
	s.router.HandleFunc("/api/v1/analyze", s.handleAnalyzeSnapshot).Methods("POST")
	s.router.HandleFunc("/api/v1/sensor/{vehicle_id}/analyze", s.handleAnalyzeVehicle).Methods("GET")
	s.router.HandleFunc("/api/v1/sensor/{vehicle_id}/trends", s.handleTrends).Methods("GET")
	s.router.HandleFunc("/api/v1/sensor/{vehicle_id}/outliers", s.handleOutliers).Methods("GET")
	s.router.HandleFunc("/api/v1/diagnosis/{vehicle_id}", s.handleDiagnosis).Methods("POST")

	// Alert endpoints
	s.router.HandleFunc("/api/v1/alerts", s.handleListAlerts).Methods("GET")
	s.router.HandleFunc("/api/v1/alerts/{vehicle_id}", s.handleListAlerts).Methods("GET")
	s.router.HandleFunc("/api/v1/alerts/{id}/resolve", s.handleResolveAlert).Methods("POST")
	s.router.HandleFunc("/api/v1/insights", s.handleInsights).Methods("GET")

	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	s.router.Use(s.instrument)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// HTTPServer wraps the router with the configured timeouts.
func (s *Server) HTTPServer(addr string, read, write, idle time.Duration) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    read,
		WriteTimeout:   write,
		IdleTimeout:    idle,
		MaxHeaderBytes: 1 << 20,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and records it under its route template so
// per-vehicle paths share one series.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDurationSeconds.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
		)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Meta    *meta       `json:"meta,omitempty"`
}

type meta struct {
	Total   int   `json:"total,omitempty"`
	Limit   int   `json:"limit,omitempty"`
	Offset  int   `json:"offset,omitempty"`
	QueryMs int64 `json:"query_ms,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

func respondWithMeta(w http.ResponseWriter, data interface{}, m *meta) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Meta: m})
}

// respondFailure maps domain errors onto status codes: missing sensor
// fields are 422, unknown vehicles or readings 404, anything else 500.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var missing *models.MissingFieldError
	switch {
	case errors.As(err, &missing):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, db.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.db.ListVehicles(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, vehicles)
}

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var v models.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if v.ID == "" || v.Model == "" || v.VIN == "" {
		respondError(w, http.StatusBadRequest, "id, model, and vin are required")
		return
	}

	if err := s.db.InsertVehicle(r.Context(), &v); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, v)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, err := s.db.GetVehicle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, vehicle)
}

func (s *Server) handleVehicleHealth(w http.ResponseWriter, r *http.Request) {
	summary, err := s.monitor.Health(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleQueryTelemetry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	q := models.ReadingQuery{VehicleID: r.URL.Query().Get("vehicle_id")}

	var err error
	if q.Limit, err = queryInt(r, "limit", 100); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if v := r.URL.Query().Get("start_time"); v != "" {
		if q.StartTime, err = models.ParseTimestamp(v); err != nil {
			respondError(w, http.StatusBadRequest, "invalid start_time")
			return
		}
	}
	if v := r.URL.Query().Get("end_time"); v != "" {
		if q.EndTime, err = models.ParseTimestamp(v); err != nil {
			respondError(w, http.StatusBadRequest, "invalid end_time")
			return
		}
	}

	results, err := s.db.QueryReadings(r.Context(), q)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondWithMeta(w, results, &meta{
		Total:   len(results),
		Limit:   q.Limit,
		Offset:  q.Offset,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleCreateTelemetry(w http.ResponseWriter, r *http.Request) {
	var snap models.SensorSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}

	result, err := s.monitor.Ingest(r.Context(), []models.SensorSnapshot{snap}, "api")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	if result.Rejected > 0 {
		respondError(w, http.StatusBadRequest, result.Errors[0])
		return
	}

	respondJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleBatchTelemetry(w http.ResponseWriter, r *http.Request) {
	var records []models.SensorSnapshot
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON array")
		return
	}

	if len(records) == 0 {
		respondError(w, http.StatusBadRequest, "empty array")
		return
	}

	now := time.Now().UTC()
	for i := range records {
		if records[i].Timestamp.IsZero() {
			records[i].Timestamp = now
		}
	}

	result, err := s.monitor.Ingest(r.Context(), records, "api")
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	if result.Accepted == 0 {
		respondError(w, http.StatusBadRequest, "no valid records: "+result.Errors[0])
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleLatestTelemetry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	reading, err := s.db.GetLatestReading(r.Context(), mux.Vars(r)["vehicle_id"])
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondWithMeta(w, reading, &meta{QueryMs: time.Since(start).Milliseconds()})
}

func (s *Server) handleTelemetrySummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	summary, err := s.db.GetReadingSummary(r.Context(), mux.Vars(r)["vehicle_id"])
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondWithMeta(w, summary, &meta{QueryMs: time.Since(start).Milliseconds()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
