package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"water-grid-monitoring-system/api/internal/analytics"
	"water-grid-monitoring-system/api/internal/ledger"
	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/api/internal/repos"
	"water-grid-monitoring-system/shared/httpx"
	"water-grid-monitoring-system/shared/workflow"
)

var testNow = time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)

type stubZones struct {
	zones []models.Zone
}

func (s *stubZones) Create(_ context.Context, zone models.Zone) (models.Zone, error) {
	if zone.ZoneID == uuid.Nil {
		zone.ZoneID = uuid.New()
	}
	if zone.Status == "" {
		zone.Status = models.ZoneStatusOptimal
	}
	zone.UpdatedAt = testNow
	s.zones = append(s.zones, zone)
	return zone, nil
}

func (s *stubZones) GetByID(_ context.Context, zoneID uuid.UUID) (models.Zone, error) {
	for _, zone := range s.zones {
		if zone.ZoneID == zoneID {
			return zone, nil
		}
	}
	return models.Zone{}, pgx.ErrNoRows
}

func (s *stubZones) List(_ context.Context, _ int, _ int) ([]models.Zone, error) {
	out := make([]models.Zone, len(s.zones))
	copy(out, s.zones)
	return out, nil
}

func (s *stubZones) Update(_ context.Context, zone models.Zone) (models.Zone, error) {
	for i := range s.zones {
		if s.zones[i].ZoneID == zone.ZoneID {
			zone.UpdatedAt = testNow
			s.zones[i] = zone
			return zone, nil
		}
	}
	return models.Zone{}, pgx.ErrNoRows
}

func (s *stubZones) Delete(_ context.Context, zoneID uuid.UUID) (bool, error) {
	for i := range s.zones {
		if s.zones[i].ZoneID == zoneID {
			s.zones = append(s.zones[:i], s.zones[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type stubPumps struct {
	pumps []models.Pump
}

func (s *stubPumps) Create(_ context.Context, pump models.Pump) (models.Pump, error) {
	pump.PumpID = uuid.New()
	if pump.Status == "" {
		pump.Status = models.PumpStatusIdle
	}
	s.pumps = append(s.pumps, pump)
	return pump, nil
}

func (s *stubPumps) List(_ context.Context, zoneID uuid.UUID, _ int) ([]models.Pump, error) {
	if zoneID == uuid.Nil {
		return s.pumps, nil
	}
	var out []models.Pump
	for _, pump := range s.pumps {
		if pump.ZoneID == zoneID {
			out = append(out, pump)
		}
	}
	return out, nil
}

type stubSources struct {
	sources []models.Source
}

func (s *stubSources) Create(_ context.Context, source models.Source) (models.Source, error) {
	source.SourceID = uuid.New()
	s.sources = append(s.sources, source)
	return source, nil
}

func (s *stubSources) List(_ context.Context, _ int) ([]models.Source, error) {
	return s.sources, nil
}

type stubReadings struct {
	byZone map[uuid.UUID][]models.SensorReading
}

func newStubReadings() *stubReadings {
	return &stubReadings{byZone: make(map[uuid.UUID][]models.SensorReading)}
}

func (s *stubReadings) InsertOne(_ context.Context, reading models.SensorReading) (models.SensorReading, error) {
	reading.ReadingID = uuid.New()
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = testNow
	}
	s.byZone[reading.ZoneID] = append(s.byZone[reading.ZoneID], reading)
	return reading, nil
}

func (s *stubReadings) RecentByZone(_ context.Context, zoneID uuid.UUID, limit int) ([]models.SensorReading, error) {
	readings := s.byZone[zoneID]
	if limit > 0 && len(readings) > limit {
		readings = readings[len(readings)-limit:]
	}
	return readings, nil
}

func (s *stubReadings) HistoryByZone(_ context.Context, zoneID uuid.UUID, _ time.Time, _ int) ([]models.SensorReading, error) {
	return s.byZone[zoneID], nil
}

func (s *stubReadings) HistorySince(_ context.Context, _ time.Time) (map[uuid.UUID][]models.SensorReading, error) {
	return s.byZone, nil
}

type stubReports struct {
	chain []models.CitizenReport
}

func (s *stubReports) Append(_ context.Context, report models.CitizenReport) (models.CitizenReport, error) {
	var tail *models.CitizenReport
	if len(s.chain) > 0 {
		tail = &s.chain[len(s.chain)-1]
	}
	if report.ReportID == uuid.Nil {
		report.ReportID = uuid.New()
	}
	if report.Status == "" {
		report.Status = workflow.ReportStatusPending
	}
	sealed := ledger.NextBlock(tail, report, testNow)
	s.chain = append(s.chain, sealed)
	return sealed, nil
}

func (s *stubReports) GetByID(_ context.Context, reportID uuid.UUID) (models.CitizenReport, error) {
	for _, report := range s.chain {
		if report.ReportID == reportID {
			return report, nil
		}
	}
	return models.CitizenReport{}, pgx.ErrNoRows
}

func (s *stubReports) List(_ context.Context, status string, _ int, _ int) ([]models.CitizenReport, error) {
	var out []models.CitizenReport
	for _, report := range s.chain {
		if status == "" || report.Status == status {
			out = append(out, report)
		}
	}
	return out, nil
}

func (s *stubReports) ListChain(_ context.Context) ([]models.CitizenReport, error) {
	out := make([]models.CitizenReport, len(s.chain))
	copy(out, s.chain)
	return out, nil
}

func (s *stubReports) TransitionStatus(_ context.Context, reportID uuid.UUID, toStatus string, canTransition func(string, string) bool, _ func(string, string) string) (models.CitizenReport, bool, error) {
	for i := range s.chain {
		if s.chain[i].ReportID != reportID {
			continue
		}
		from := s.chain[i].Status
		if workflow.NormalizeStatus(from) == workflow.NormalizeStatus(toStatus) {
			return s.chain[i], false, nil
		}
		if !canTransition(from, toStatus) {
			return s.chain[i], false, repos.ErrInvalidReportTransition
		}
		s.chain[i].Status = toStatus
		return s.chain[i], true, nil
	}
	return models.CitizenReport{}, false, pgx.ErrNoRows
}

type stubAlerts struct {
	alerts []models.Alert
}

func (s *stubAlerts) List(_ context.Context, status string, _ int) ([]models.Alert, error) {
	var out []models.Alert
	for _, alert := range s.alerts {
		if status == "" || alert.Status == status {
			out = append(out, alert)
		}
	}
	return out, nil
}

func (s *stubAlerts) TransitionStatus(_ context.Context, alertID uuid.UUID, toStatus string, _ string) (models.Alert, bool, error) {
	for i := range s.alerts {
		if s.alerts[i].AlertID != alertID {
			continue
		}
		from := s.alerts[i].Status
		if workflow.NormalizeStatus(from) == workflow.NormalizeStatus(toStatus) {
			return s.alerts[i], false, nil
		}
		if !workflow.CanTransitionAlert(from, toStatus) {
			return s.alerts[i], false, repos.ErrInvalidAlertTransition
		}
		s.alerts[i].Status = toStatus
		return s.alerts[i], true, nil
	}
	return models.Alert{}, false, pgx.ErrNoRows
}

type stubCache struct {
	entries map[string][]byte
	sets    int
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string][]byte)}
}

func (s *stubCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *stubCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	s.sets++
	return nil
}

type testEnv struct {
	server   *Server
	mux      *http.ServeMux
	zones    *stubZones
	pumps    *stubPumps
	sources  *stubSources
	readings *stubReadings
	reports  *stubReports
	alerts   *stubAlerts
	cache    *stubCache
}

func newTestEnv() *testEnv {
	env := &testEnv{
		zones:    &stubZones{},
		pumps:    &stubPumps{},
		sources:  &stubSources{},
		readings: newStubReadings(),
		reports:  &stubReports{},
		alerts:   &stubAlerts{},
		cache:    newStubCache(),
	}
	env.server = &Server{
		Engine:         &analytics.Engine{JitterPct: 0},
		Zones:          env.zones,
		Pumps:          env.pumps,
		Sources:        env.sources,
		Readings:       env.readings,
		Reports:        env.reports,
		Alerts:         env.alerts,
		Cache:          env.cache,
		OverrideWindow: 5 * time.Minute,
		ScheduleTTL:    time.Minute,
		DemandTTL:      2 * time.Minute,
		Now:            func() time.Time { return testNow },
	}
	env.mux = http.NewServeMux()
	env.server.RegisterRoutes(env.mux)
	return env
}

func (env *testEnv) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return out
}

func TestCreateZoneValidation(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/v1/zones", map[string]any{"flow_rate": 10.0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestZoneCRUD(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/zones", map[string]any{
		"name": "North District", "flow_rate": 120.0, "pressure": 50.0, "population": 40000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[models.Zone](t, rec)
	if created.Status != models.ZoneStatusOptimal {
		t.Fatalf("status = %q, want optimal", created.Status)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/zones/"+created.ZoneID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/zones/"+created.ZoneID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/zones/"+created.ZoneID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
}

func TestGetZoneManualOverrideWindow(t *testing.T) {
	env := newTestEnv()
	zone, _ := env.zones.Create(context.Background(), models.Zone{
		Name: "Override", Status: models.ZoneStatusMaintenance, FlowRate: 100, Pressure: 55, Population: 30000,
	})
	for i := 0; i < 12; i++ {
		env.readings.InsertOne(context.Background(), models.SensorReading{
			ZoneID: zone.ZoneID, FlowRate: 140, Pressure: 20,
			RecordedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
	}

	// Updated at testNow, inside the 5 minute window: stored values win.
	rec := env.do(t, http.MethodGet, "/api/v1/zones/"+zone.ZoneID.String(), nil)
	got := decodeBody[models.Zone](t, rec)
	if got.Status != models.ZoneStatusMaintenance {
		t.Fatalf("status inside window = %q, want maintenance", got.Status)
	}
	if got.FlowRate != 100 {
		t.Fatalf("flow inside window = %v, want stored 100", got.FlowRate)
	}

	// Expire the window: low pressure readings drive the status and the
	// flow field carries the engine's prediction, not the raw reading.
	// Same-hour mean 140 scaled by 30000/50000 and the 1.4 peak multiplier.
	env.server.Now = func() time.Time { return testNow.Add(10 * time.Minute) }
	rec = env.do(t, http.MethodGet, "/api/v1/zones/"+zone.ZoneID.String(), nil)
	got = decodeBody[models.Zone](t, rec)
	if got.Status != models.ZoneStatusLowPressure {
		t.Fatalf("status after window = %q, want low-pressure", got.Status)
	}
	if got.FlowRate != 118 {
		t.Fatalf("flow after window = %v, want predicted 118", got.FlowRate)
	}
	if got.Pressure != 20 {
		t.Fatalf("pressure = %v, want latest reading 20", got.Pressure)
	}
}

func TestCreateReadingValidation(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/readings", map[string]any{"flow_rate": 10.0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing zone_id status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/readings", map[string]any{
		"zone_id": uuid.New().String(), "flow_rate": -1.0, "pressure": 40.0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative flow status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/readings", map[string]any{
		"zone_id": uuid.New().String(), "flow_rate": 95.0, "pressure": 48.5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	stored := decodeBody[models.SensorReading](t, rec)
	if stored.ReadingID == uuid.Nil || stored.RecordedAt.IsZero() {
		t.Fatalf("reading not defaulted: %+v", stored)
	}
}

func TestListPumpsRejectsBadZoneFilter(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/v1/pumps?zone_id=not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDemandPredictionCaches(t *testing.T) {
	env := newTestEnv()
	env.zones.Create(context.Background(), models.Zone{Name: "Cached", FlowRate: 100, Population: 50000})

	rec := env.do(t, http.MethodGet, "/api/v1/analytics/demand-prediction", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if env.cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", env.cache.sets)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/analytics/demand-prediction", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cached status = %d", rec.Code)
	}
	if env.cache.sets != 1 {
		t.Fatalf("cache sets after hit = %d, want still 1", env.cache.sets)
	}

	resp := decodeBody[demandResponse](t, rec)
	if len(resp.Predictions) != 1 {
		t.Fatalf("predictions = %d, want 1", len(resp.Predictions))
	}
	if len(resp.Predictions[0].Horizon) != 2 {
		t.Fatalf("horizon = %d, want 2", len(resp.Predictions[0].Horizon))
	}
}

func TestDemandPredictionBadZoneFilter(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/v1/analytics/demand-prediction?zone_id=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEquityEndpointSkipsUnpopulatedZones(t *testing.T) {
	env := newTestEnv()
	env.zones.Create(context.Background(), models.Zone{Name: "A", FlowRate: 100, Population: 1000})
	env.zones.Create(context.Background(), models.Zone{Name: "Empty", FlowRate: 100, Population: 0})

	rec := env.do(t, http.MethodGet, "/api/v1/analytics/equity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeBody[struct {
		EquityScore float64      `json:"equity_score"`
		Zones       []equityZone `json:"zones"`
	}](t, rec)
	if len(resp.Zones) != 1 {
		t.Fatalf("breakdown zones = %d, want 1", len(resp.Zones))
	}
	if resp.EquityScore != 100 {
		t.Fatalf("equity score = %v, want 100 with one scorable zone", resp.EquityScore)
	}
}

func TestSchedulesFallbackWindows(t *testing.T) {
	env := newTestEnv()
	zone, _ := env.zones.Create(context.Background(), models.Zone{Name: "Sched", FlowRate: 80, Population: 20000})
	env.pumps.Create(context.Background(), models.Pump{ZoneID: zone.ZoneID, Name: "P1", FlowRate: 150})

	rec := env.do(t, http.MethodGet, "/api/v1/ai/schedules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[schedulesResponse](t, rec)
	if len(resp.Schedules) != 2 {
		t.Fatalf("schedules = %d, want morning and evening windows", len(resp.Schedules))
	}
	if env.cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", env.cache.sets)
	}
}

func TestReportLifecycleAndChain(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{"type": "leak"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("incomplete report status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{
		"type": "leak", "location": "5th and Main", "description": "water pooling at the curb",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	first := decodeBody[models.CitizenReport](t, rec)
	if first.BlockNumber != 0 || first.PreviousHash != ledger.GenesisHash {
		t.Fatalf("genesis block wrong: number %d prev %q", first.BlockNumber, first.PreviousHash)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/reports", map[string]any{
		"type": "contamination", "location": "Elm St", "description": "discolored tap water",
	})
	second := decodeBody[models.CitizenReport](t, rec)
	if second.BlockNumber != 1 || second.PreviousHash != first.ReportHash {
		t.Fatalf("second block not linked: number %d", second.BlockNumber)
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/reports/"+first.ReportID.String()+"/status", map[string]any{"status": workflow.ReportStatusInvestigating})
	if rec.Code != http.StatusOK {
		t.Fatalf("transition status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/reports/"+second.ReportID.String()+"/status", map[string]any{"status": "bogus"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("invalid transition status = %d, want 409", rec.Code)
	}
	conflict := decodeBody[httpx.ErrorEnvelope](t, rec)
	if details, ok := conflict.Error.Details.(map[string]any); !ok || details["from"] != workflow.ReportStatusPending {
		t.Fatalf("conflict details = %+v, want from=pending", conflict.Error.Details)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/blockchain/verify", nil)
	verify := decodeBody[struct {
		Valid         bool  `json:"valid"`
		BlocksChecked int   `json:"blocks_checked"`
		InvalidBlock  int64 `json:"invalid_block"`
	}](t, rec)
	if !verify.Valid || verify.BlocksChecked != 2 || verify.InvalidBlock != -1 {
		t.Fatalf("verify = %+v", verify)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/blockchain/stats", nil)
	stats := decodeBody[ledger.Stats](t, rec)
	if stats.TotalBlocks != 2 || !stats.Valid || stats.InvalidBlock != -1 || stats.LatestBlock != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.GenesisHash == nil || *stats.GenesisHash != first.ReportHash {
		t.Fatalf("genesis hash = %v, want first block's hash", stats.GenesisHash)
	}
	if stats.LatestHash == nil || *stats.LatestHash != second.ReportHash {
		t.Fatalf("latest hash = %v, want second block's hash", stats.LatestHash)
	}
	if stats.ByStatus[workflow.ReportStatusInvestigating] != 1 || stats.ByStatus[workflow.ReportStatusPending] != 1 {
		t.Fatalf("by_status = %+v", stats.ByStatus)
	}
}

func TestVerifyChainFlagsTampering(t *testing.T) {
	env := newTestEnv()
	env.reports.Append(context.Background(), models.CitizenReport{Type: "leak", Location: "A", Description: "d"})
	env.reports.Append(context.Background(), models.CitizenReport{Type: "leak", Location: "B", Description: "d"})
	env.reports.chain[1].Description = "tampered"

	rec := env.do(t, http.MethodGet, "/api/v1/blockchain/verify", nil)
	verify := decodeBody[struct {
		Valid        bool  `json:"valid"`
		InvalidBlock int64 `json:"invalid_block"`
	}](t, rec)
	if verify.Valid || verify.InvalidBlock != 1 {
		t.Fatalf("verify = %+v", verify)
	}
}

func TestAlertStatusTransitions(t *testing.T) {
	env := newTestEnv()
	alertID := uuid.New()
	env.alerts.alerts = append(env.alerts.alerts, models.Alert{
		AlertID: alertID, Type: models.AnomalyLeakDetected, Severity: models.SeverityCritical, Status: workflow.AlertStatusOpen,
	})

	rec := env.do(t, http.MethodPatch, "/api/v1/alerts/"+alertID.String()+"/status", map[string]any{"status": workflow.AlertStatusAcknowledged, "notes": "crew dispatched"})
	if rec.Code != http.StatusOK {
		t.Fatalf("ack status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/alerts/"+alertID.String()+"/status", map[string]any{"status": workflow.AlertStatusOpen})
	if rec.Code != http.StatusConflict {
		t.Fatalf("reopen status = %d, want 409", rec.Code)
	}
	conflict := decodeBody[httpx.ErrorEnvelope](t, rec)
	if details, ok := conflict.Error.Details.(map[string]any); !ok || details["from"] != workflow.AlertStatusAcknowledged {
		t.Fatalf("conflict details = %+v, want from=acknowledged", conflict.Error.Details)
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/alerts/"+uuid.New().String()+"/status", map[string]any{"status": workflow.AlertStatusResolved})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown alert status = %d, want 404", rec.Code)
	}
}

func TestInsightsReportsAnomalies(t *testing.T) {
	env := newTestEnv()
	zone, _ := env.zones.Create(context.Background(), models.Zone{Name: "Leaky", FlowRate: 100, Pressure: 50, Population: 10000})
	for i := 0; i < 15; i++ {
		env.readings.InsertOne(context.Background(), models.SensorReading{
			ZoneID: zone.ZoneID, FlowRate: 130, Pressure: 30,
			RecordedAt: testNow.Add(time.Duration(i-15) * time.Minute),
		})
	}

	rec := env.do(t, http.MethodGet, "/api/v1/ai/insights", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[struct {
		Anomalies []models.AnomalyDetection `json:"anomalies"`
	}](t, rec)
	if len(resp.Anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(resp.Anomalies))
	}
	if resp.Anomalies[0].Type != models.AnomalyLeakDetected {
		t.Fatalf("anomaly type = %q, want leak_detected", resp.Anomalies[0].Type)
	}
}
