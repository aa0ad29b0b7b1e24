// Package handlers is the HTTP surface of the monitoring API. Handlers
// depend on narrow store interfaces rather than the concrete pgx repos so
// they can be exercised against in-memory stubs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"water-grid-monitoring-system/api/internal/analytics"
	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/shared/httpx"
	"water-grid-monitoring-system/shared/logx"
)

const maxBodyBytes = 1 << 20

type ZoneStore interface {
	Create(ctx context.Context, zone models.Zone) (models.Zone, error)
	GetByID(ctx context.Context, zoneID uuid.UUID) (models.Zone, error)
	List(ctx context.Context, limit int, offset int) ([]models.Zone, error)
	Update(ctx context.Context, zone models.Zone) (models.Zone, error)
	Delete(ctx context.Context, zoneID uuid.UUID) (bool, error)
}

type PumpStore interface {
	Create(ctx context.Context, pump models.Pump) (models.Pump, error)
	List(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Pump, error)
}

type SourceStore interface {
	Create(ctx context.Context, source models.Source) (models.Source, error)
	List(ctx context.Context, limit int) ([]models.Source, error)
}

type ReadingStore interface {
	InsertOne(ctx context.Context, reading models.SensorReading) (models.SensorReading, error)
	RecentByZone(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.SensorReading, error)
	HistoryByZone(ctx context.Context, zoneID uuid.UUID, since time.Time, limit int) ([]models.SensorReading, error)
	HistorySince(ctx context.Context, since time.Time) (map[uuid.UUID][]models.SensorReading, error)
}

type ReportStore interface {
	Append(ctx context.Context, report models.CitizenReport) (models.CitizenReport, error)
	GetByID(ctx context.Context, reportID uuid.UUID) (models.CitizenReport, error)
	List(ctx context.Context, status string, limit int, offset int) ([]models.CitizenReport, error)
	ListChain(ctx context.Context) ([]models.CitizenReport, error)
	TransitionStatus(ctx context.Context, reportID uuid.UUID, toStatus string, canTransition func(string, string) bool, eventForTransition func(string, string) string) (models.CitizenReport, bool, error)
}

type AlertStore interface {
	List(ctx context.Context, status string, limit int) ([]models.Alert, error)
	TransitionStatus(ctx context.Context, alertID uuid.UUID, toStatus string, notes string) (models.Alert, bool, error)
}

// Cache is the slice of cachex the handlers use. A nil Cache disables
// response caching without changing behavior.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Server struct {
	Logger   logx.Logger
	Engine   *analytics.Engine
	Zones    ZoneStore
	Pumps    PumpStore
	Sources  SourceStore
	Readings ReadingStore
	Reports  ReportStore
	Alerts   AlertStore
	Cache    Cache

	// OverrideWindow is how long a manual zone update keeps its stored
	// status and flow before engine enrichment takes over again.
	OverrideWindow time.Duration
	ScheduleTTL    time.Duration
	DemandTTL      time.Duration

	Now func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/zones", s.listZones)
	mux.HandleFunc("POST /api/v1/zones", s.createZone)
	mux.HandleFunc("GET /api/v1/zones/{id}", s.getZone)
	mux.HandleFunc("PUT /api/v1/zones/{id}", s.updateZone)
	mux.HandleFunc("DELETE /api/v1/zones/{id}", s.deleteZone)
	mux.HandleFunc("GET /api/v1/zones/{id}/readings", s.listZoneReadings)

	mux.HandleFunc("GET /api/v1/pumps", s.listPumps)
	mux.HandleFunc("POST /api/v1/pumps", s.createPump)
	mux.HandleFunc("GET /api/v1/sources", s.listSources)
	mux.HandleFunc("POST /api/v1/sources", s.createSource)
	mux.HandleFunc("POST /api/v1/readings", s.createReading)

	mux.HandleFunc("GET /api/v1/analytics/demand-prediction", s.demandPrediction)
	mux.HandleFunc("GET /api/v1/analytics/equity", s.equity)
	mux.HandleFunc("GET /api/v1/ai/schedules", s.schedules)
	mux.HandleFunc("GET /api/v1/ai/insights", s.insights)

	mux.HandleFunc("GET /api/v1/alerts", s.listAlerts)
	mux.HandleFunc("PATCH /api/v1/alerts/{id}/status", s.updateAlertStatus)

	mux.HandleFunc("POST /api/v1/reports", s.createReport)
	mux.HandleFunc("GET /api/v1/reports", s.listReports)
	mux.HandleFunc("GET /api/v1/reports/{id}", s.getReport)
	mux.HandleFunc("PATCH /api/v1/reports/{id}/status", s.updateReportStatus)

	mux.HandleFunc("GET /api/v1/blockchain/verify", s.verifyChain)
	mux.HandleFunc("GET /api/v1/blockchain/stats", s.chainStats)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid json body", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	if errors.Is(err, pgx.ErrNoRows) {
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", notFoundMsg, nil)
		return
	}
	httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "storage error", nil)
}
