package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"water-grid-monitoring-system/api/internal/analytics"
	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/shared/httpx"
	"water-grid-monitoring-system/shared/metricsx"
)

// Seven days of history feeds the per-hour demand curves.
const analyticsHistoryWindow = 7 * 24 * time.Hour

const (
	cacheKeyDemand    = "analytics:demand"
	cacheKeySchedules = "ai:schedules"
)

type demandResponse struct {
	Predictions []analytics.DemandPrediction `json:"predictions"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

func (s *Server) demandPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	zoneFilter := r.URL.Query().Get("zone_id")

	cacheKey := cacheKeyDemand
	if zoneFilter != "" {
		cacheKey += ":" + zoneFilter
	}
	if s.Cache != nil {
		var cached demandResponse
		if ok, err := s.Cache.GetJSON(ctx, cacheKey, &cached); err == nil && ok {
			httpx.WriteJSON(w, http.StatusOK, cached)
			return
		}
	}

	var zones []models.Zone
	if zoneFilter != "" {
		zoneID, err := uuid.Parse(zoneFilter)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid zone_id", nil)
			return
		}
		zone, err := s.Zones.GetByID(ctx, zoneID)
		if err != nil {
			writeStoreError(w, r, err, "zone not found")
			return
		}
		zones = []models.Zone{zone}
	} else {
		var err error
		zones, err = s.Zones.List(ctx, 500, 0)
		if err != nil {
			writeStoreError(w, r, err, "zones not found")
			return
		}
	}

	now := s.now()
	history, err := s.Readings.HistorySince(ctx, now.Add(-analyticsHistoryWindow))
	if err != nil {
		writeStoreError(w, r, err, "readings not found")
		return
	}

	resp := demandResponse{
		Predictions: make([]analytics.DemandPrediction, 0, len(zones)),
		GeneratedAt: now,
	}
	for _, zone := range zones {
		resp.Predictions = append(resp.Predictions, s.Engine.PredictDemand(zone, history[zone.ZoneID], now))
	}

	if s.Cache != nil && s.DemandTTL > 0 {
		_ = s.Cache.SetJSON(ctx, cacheKey, resp, s.DemandTTL)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type equityZone struct {
	ZoneID       uuid.UUID `json:"zone_id"`
	Name         string    `json:"name"`
	Population   int64     `json:"population"`
	PerCapitaLPM float64   `json:"per_capita_lpm"`
}

func (s *Server) equity(w http.ResponseWriter, r *http.Request) {
	zones, err := s.Zones.List(r.Context(), 500, 0)
	if err != nil {
		writeStoreError(w, r, err, "zones not found")
		return
	}

	breakdown := make([]equityZone, 0, len(zones))
	for _, zone := range zones {
		if zone.Population <= 0 {
			continue
		}
		breakdown = append(breakdown, equityZone{
			ZoneID:       zone.ZoneID,
			Name:         zone.Name,
			Population:   zone.Population,
			PerCapitaLPM: zone.FlowRate / (float64(zone.Population) / 1000),
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"equity_score": s.Engine.CalculateEquityScore(zones),
		"zones":        breakdown,
		"generated_at": s.now(),
	})
}

type schedulesResponse struct {
	Schedules   []models.OptimalSchedule `json:"schedules"`
	GeneratedAt time.Time                `json:"generated_at"`
}

func (s *Server) schedules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.Cache != nil {
		var cached schedulesResponse
		if ok, err := s.Cache.GetJSON(ctx, cacheKeySchedules, &cached); err == nil && ok {
			httpx.WriteJSON(w, http.StatusOK, cached)
			return
		}
	}

	started := time.Now()
	zones, pumps, sources, history, err := s.loadGridSnapshot(r)
	if err != nil {
		writeStoreError(w, r, err, "grid data not found")
		return
	}

	resp := schedulesResponse{
		Schedules:   s.Engine.GenerateOptimalSchedules(zones, pumps, sources, history),
		GeneratedAt: s.now(),
	}
	metricsx.ObserveScheduleLatency(time.Since(started))

	if s.Cache != nil && s.ScheduleTTL > 0 {
		_ = s.Cache.SetJSON(ctx, cacheKeySchedules, resp, s.ScheduleTTL)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) insights(w http.ResponseWriter, r *http.Request) {
	zones, pumps, _, history, err := s.loadGridSnapshot(r)
	if err != nil {
		writeStoreError(w, r, err, "grid data not found")
		return
	}

	now := s.now()
	anomalies := s.Engine.DetectAnomalies(zones, history, pumps, now)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"anomalies":    anomalies,
		"equity_score": s.Engine.CalculateEquityScore(zones),
		"generated_at": now,
	})
}

func (s *Server) loadGridSnapshot(r *http.Request) ([]models.Zone, []models.Pump, []models.Source, map[uuid.UUID][]models.SensorReading, error) {
	ctx := r.Context()
	zones, err := s.Zones.List(ctx, 500, 0)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	pumps, err := s.Pumps.List(ctx, uuid.Nil, 1000)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	sources, err := s.Sources.List(ctx, 500)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	history, err := s.Readings.HistorySince(ctx, s.now().Add(-analyticsHistoryWindow))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return zones, pumps, sources, history, nil
}
