package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/shared/httpx"
	"water-grid-monitoring-system/shared/metricsx"
)

type readingRequest struct {
	ZoneID      uuid.UUID  `json:"zone_id"`
	FlowRate    float64    `json:"flow_rate"`
	Pressure    float64    `json:"pressure"`
	Consumption *float64   `json:"consumption"`
	RecordedAt  *time.Time `json:"recorded_at"`
}

// createReading is the direct ingest path used by field tooling. Bulk
// telemetry arrives through the gateway and Kafka instead.
func (s *Server) createReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ZoneID == uuid.Nil {
		metricsx.IncReadingRejected()
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "zone_id is required", nil)
		return
	}
	if req.FlowRate < 0 || req.Pressure < 0 {
		metricsx.IncReadingRejected()
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "flow_rate and pressure must be non-negative", nil)
		return
	}
	if req.Consumption != nil && *req.Consumption < 0 {
		metricsx.IncReadingRejected()
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "consumption must be non-negative", nil)
		return
	}

	reading := models.SensorReading{
		ZoneID:      req.ZoneID,
		FlowRate:    req.FlowRate,
		Pressure:    req.Pressure,
		Consumption: req.Consumption,
	}
	if req.RecordedAt != nil {
		reading.RecordedAt = req.RecordedAt.UTC()
	}

	stored, err := s.Readings.InsertOne(r.Context(), reading)
	if err != nil {
		writeStoreError(w, r, err, "zone not found")
		return
	}
	metricsx.IncReadingIngested(stored.ZoneID.String())
	httpx.WriteJSON(w, http.StatusCreated, stored)
}
