package handlers

import (
	"net/http"

	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/shared/httpx"
)

const recentReadingsWindow = 20

type zoneRequest struct {
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	FlowRate   float64 `json:"flow_rate"`
	Pressure   float64 `json:"pressure"`
	Population int64   `json:"population"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

func (req zoneRequest) validate() (string, bool) {
	if req.Name == "" {
		return "name is required", false
	}
	if req.FlowRate < 0 || req.Pressure < 0 {
		return "flow_rate and pressure must be non-negative", false
	}
	if req.Population < 0 {
		return "population must be non-negative", false
	}
	return "", true
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 200)
	offset := queryInt(r, "offset", 0)
	zones, err := s.Zones.List(r.Context(), limit, offset)
	if err != nil {
		writeStoreError(w, r, err, "zones not found")
		return
	}
	for i := range zones {
		zones[i] = s.enrichZone(r, zones[i])
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"zones": zones, "count": len(zones)})
}

func (s *Server) createZone(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg, ok := req.validate(); !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", msg, nil)
		return
	}
	zone, err := s.Zones.Create(r.Context(), models.Zone{
		Name:       req.Name,
		Status:     req.Status,
		FlowRate:   req.FlowRate,
		Pressure:   req.Pressure,
		Population: req.Population,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	})
	if err != nil {
		writeStoreError(w, r, err, "zone not found")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, zone)
}

func (s *Server) getZone(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	zone, err := s.Zones.GetByID(r.Context(), zoneID)
	if err != nil {
		writeStoreError(w, r, err, "zone not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, s.enrichZone(r, zone))
}

func (s *Server) updateZone(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req zoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg, ok := req.validate(); !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", msg, nil)
		return
	}
	zone, err := s.Zones.Update(r.Context(), models.Zone{
		ZoneID:     zoneID,
		Name:       req.Name,
		Status:     req.Status,
		FlowRate:   req.FlowRate,
		Pressure:   req.Pressure,
		Population: req.Population,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	})
	if err != nil {
		writeStoreError(w, r, err, "zone not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, zone)
}

func (s *Server) deleteZone(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	deleted, err := s.Zones.Delete(r.Context(), zoneID)
	if err != nil {
		writeStoreError(w, r, err, "zone not found")
		return
	}
	if !deleted {
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "zone not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listZoneReadings(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 100)
	readings, err := s.Readings.RecentByZone(r.Context(), zoneID, limit)
	if err != nil {
		writeStoreError(w, r, err, "zone not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"zone_id": zoneID, "readings": readings, "count": len(readings)})
}

// enrichZone recomputes status and expected flow from recent telemetry.
// A zone updated by an operator inside the override window is returned
// as stored so manual corrections are not immediately clobbered.
func (s *Server) enrichZone(r *http.Request, zone models.Zone) models.Zone {
	now := s.now()
	if s.OverrideWindow > 0 && now.Sub(zone.UpdatedAt) < s.OverrideWindow {
		return zone
	}
	recent, err := s.Readings.RecentByZone(r.Context(), zone.ZoneID, recentReadingsWindow)
	if err != nil || len(recent) == 0 {
		return zone
	}
	predicted := s.Engine.PredictFlowRate(zone, recent, now)
	zone.Status = s.Engine.CalculateZoneStatus(zone, recent, now)
	zone.FlowRate = predicted
	zone.Pressure = recent[len(recent)-1].Pressure
	return zone
}
