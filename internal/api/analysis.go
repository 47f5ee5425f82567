package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"ev-fleet-monitor/internal/models"
)

// handleAnalyzeSnapshot checks a posted snapshot without storing it.
func (s *Server) handleAnalyzeSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap models.SensorSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.monitor.Detect(snap)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnalyzeVehicle(w http.ResponseWriter, r *http.Request) {
	report, err := s.monitor.Analyze(r.Context(), mux.Vars(r)["vehicle_id"])
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	report, err := s.monitor.Trends(r.Context(), mux.Vars(r)["vehicle_id"])
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleOutliers(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["vehicle_id"]
	outliers, err := s.monitor.Outliers(r.Context(), vehicleID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"vehicle_id":        vehicleID,
		"pattern_anomalies": outliers,
	})
}

func (s *Server) handleDiagnosis(w http.ResponseWriter, r *http.Request) {
	report, err := s.monitor.Diagnose(r.Context(), mux.Vars(r)["vehicle_id"])
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	unresolved := r.URL.Query().Get("unresolved") == "true"

	alerts, err := s.db.ListAlerts(r.Context(), mux.Vars(r)["vehicle_id"], unresolved, limit)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondWithMeta(w, alerts, &meta{Total: len(alerts), Limit: limit})
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.db.ResolveAlert(r.Context(), id); err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "resolved"})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.monitor.Insights(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, insights)
}
