package handlers

import (
	"errors"
	"net/http"

	"water-grid-monitoring-system/api/internal/repos"
	"water-grid-monitoring-system/shared/httpx"
	"water-grid-monitoring-system/shared/workflow"
)

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	status := workflow.NormalizeStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 100)
	alerts, err := s.Alerts.List(r.Context(), status, limit)
	if err != nil {
		writeStoreError(w, r, err, "alerts not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

type alertStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *Server) updateAlertStatus(w http.ResponseWriter, r *http.Request) {
	alertID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req alertStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	toStatus := workflow.NormalizeStatus(req.Status)
	if toStatus == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "status is required", nil)
		return
	}

	alert, changed, err := s.Alerts.TransitionStatus(r.Context(), alertID, toStatus, req.Notes)
	if err != nil {
		if errors.Is(err, repos.ErrInvalidAlertTransition) {
			httpx.WriteError(w, r, http.StatusConflict, "INVALID_TRANSITION", "alert cannot move to "+toStatus, map[string]any{"from": alert.Status, "to": toStatus})
			return
		}
		writeStoreError(w, r, err, "alert not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"alert": alert, "changed": changed})
}
