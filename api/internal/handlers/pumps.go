package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/shared/httpx"
)

type pumpRequest struct {
	ZoneID   uuid.UUID `json:"zone_id"`
	SourceID uuid.UUID `json:"source_id"`
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	Schedule string    `json:"schedule"`
	FlowRate float64   `json:"flow_rate"`
}

func (s *Server) listPumps(w http.ResponseWriter, r *http.Request) {
	var zoneID uuid.UUID
	if raw := r.URL.Query().Get("zone_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid zone_id", nil)
			return
		}
		zoneID = parsed
	}
	limit := queryInt(r, "limit", 200)
	pumps, err := s.Pumps.List(r.Context(), zoneID, limit)
	if err != nil {
		writeStoreError(w, r, err, "pumps not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"pumps": pumps, "count": len(pumps)})
}

func (s *Server) createPump(w http.ResponseWriter, r *http.Request) {
	var req pumpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.ZoneID == uuid.Nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "name and zone_id are required", nil)
		return
	}
	if req.FlowRate < 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "flow_rate must be non-negative", nil)
		return
	}
	pump, err := s.Pumps.Create(r.Context(), models.Pump{
		ZoneID:   req.ZoneID,
		SourceID: req.SourceID,
		Name:     req.Name,
		Status:   req.Status,
		Schedule: req.Schedule,
		FlowRate: req.FlowRate,
	})
	if err != nil {
		writeStoreError(w, r, err, "pump not found")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, pump)
}

type sourceRequest struct {
	Name        string  `json:"name"`
	Kind        string  `json:"kind"`
	CapacityLPM float64 `json:"capacity_lpm"`
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 200)
	sources, err := s.Sources.List(r.Context(), limit)
	if err != nil {
		writeStoreError(w, r, err, "sources not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sources": sources, "count": len(sources)})
}

func (s *Server) createSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "name is required", nil)
		return
	}
	if req.CapacityLPM < 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "capacity_lpm must be non-negative", nil)
		return
	}
	source, err := s.Sources.Create(r.Context(), models.Source{
		Name:        req.Name,
		Kind:        req.Kind,
		CapacityLPM: req.CapacityLPM,
	})
	if err != nil {
		writeStoreError(w, r, err, "source not found")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, source)
}
