package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"water-grid-monitoring-system/api/internal/models"
)

var (
	zoneA = uuid.MustParse("0b9fb6b2-94a1-4c58-9b6f-0d6f3b1c2a01")
	zoneB = uuid.MustParse("1c8ec5a3-85b2-4d69-8c70-1e7f4c2d3b02")
)

// Monday 2026-01-05: a weekday. 07:00 falls in the morning peak band,
// 12:00 outside any peak band.
var (
	weekdayPeak    = time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	weekdayOffPeak = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	saturdayPeak   = time.Date(2026, 1, 3, 7, 0, 0, 0, time.UTC)
)

func testEngine() *Engine {
	return &Engine{JitterPct: 0}
}

func readings(n int, flow, pressure float64, at time.Time) []models.SensorReading {
	out := make([]models.SensorReading, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.SensorReading{
			ReadingID:  uuid.New(),
			ZoneID:     zoneA,
			RecordedAt: at.Add(time.Duration(i) * time.Minute),
			FlowRate:   flow,
			Pressure:   pressure,
		})
	}
	return out
}

func TestZoneStatusNoReadings(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100, Population: 50000}
	got := testEngine().CalculateZoneStatus(zone, nil, weekdayOffPeak)
	if got != models.ZoneStatusOptimal {
		t.Fatalf("status = %q, want optimal", got)
	}
}

func TestZoneStatusLowPressureWins(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100}
	// High flow in a peak hour would read as high-demand, but the
	// pressure floor is checked first.
	recent := readings(12, 200, 30, weekdayPeak.Add(-time.Hour))
	got := testEngine().CalculateZoneStatus(zone, recent, weekdayPeak)
	if got != models.ZoneStatusLowPressure {
		t.Fatalf("status = %q, want low-pressure", got)
	}
}

func TestZoneStatusHighDemand(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100}
	recent := readings(12, 140, 45, weekdayPeak.Add(-time.Hour))
	got := testEngine().CalculateZoneStatus(zone, recent, weekdayPeak)
	if got != models.ZoneStatusHighDemand {
		t.Fatalf("status = %q, want high-demand", got)
	}
}

func TestZoneStatusHighDemandNeedsStrictExcess(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100}
	// Mean flow exactly 1.3x rated is not above the threshold.
	recent := readings(12, 130, 45, weekdayPeak.Add(-time.Hour))
	got := testEngine().CalculateZoneStatus(zone, recent, weekdayPeak)
	if got != models.ZoneStatusOptimal {
		t.Fatalf("status = %q, want optimal at the exact threshold", got)
	}
}

func TestZoneStatusHighDemandOnlyInPeakHours(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100}
	recent := readings(12, 140, 45, weekdayOffPeak.Add(-time.Hour))
	got := testEngine().CalculateZoneStatus(zone, recent, weekdayOffPeak)
	if got != models.ZoneStatusOptimal {
		t.Fatalf("status = %q, want optimal off-peak", got)
	}
}

func TestZoneStatusMaintenanceOnPressureSwings(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100}
	recent := make([]models.SensorReading, 0, 12)
	for i := 0; i < 12; i++ {
		p := 30.0
		if i%2 == 0 {
			p = 60.0
		}
		recent = append(recent, models.SensorReading{
			ZoneID:     zoneA,
			RecordedAt: weekdayOffPeak.Add(time.Duration(i) * time.Minute),
			FlowRate:   100,
			Pressure:   p,
		})
	}
	// Mean pressure 45 clears the floor; variance 225 flags maintenance.
	got := testEngine().CalculateZoneStatus(zone, recent, weekdayOffPeak)
	if got != models.ZoneStatusMaintenance {
		t.Fatalf("status = %q, want maintenance", got)
	}
}

func TestZoneStatusUsesTrailingWindow(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100}
	old := readings(30, 100, 20, weekdayOffPeak.Add(-10*time.Hour))
	fresh := readings(12, 100, 50, weekdayOffPeak.Add(-time.Hour))
	got := testEngine().CalculateZoneStatus(zone, append(old, fresh...), weekdayOffPeak)
	if got != models.ZoneStatusOptimal {
		t.Fatalf("status = %q, old readings should be outside the window", got)
	}
}

func TestPredictFlowRateFallsBackToRated(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 123.45, Population: 50000}
	// History exists but none of it at the prediction hour.
	history := readings(10, 500, 45, time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC))
	got := testEngine().PredictFlowRate(zone, history, weekdayOffPeak)
	if got != 123.45 {
		t.Fatalf("prediction = %v, want the rated flow unchanged", got)
	}
}

func TestPredictFlowRateSameHourMean(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100, Population: 50000}
	history := []models.SensorReading{
		{ZoneID: zoneA, RecordedAt: time.Date(2026, 1, 4, 12, 10, 0, 0, time.UTC), FlowRate: 100},
		{ZoneID: zoneA, RecordedAt: time.Date(2026, 1, 4, 12, 20, 0, 0, time.UTC), FlowRate: 110},
		{ZoneID: zoneA, RecordedAt: time.Date(2026, 1, 4, 12, 30, 0, 0, time.UTC), FlowRate: 120},
		{ZoneID: zoneA, RecordedAt: time.Date(2026, 1, 4, 3, 0, 0, 0, time.UTC), FlowRate: 999},
	}
	got := testEngine().PredictFlowRate(zone, history, weekdayOffPeak)
	if got != 110 {
		t.Fatalf("prediction = %v, want 110", got)
	}
}

func TestPredictFlowRatePeakWeekendMultipliers(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100, Population: 50000}
	history := readings(4, 100, 45, time.Date(2026, 1, 2, 7, 0, 0, 0, time.UTC))
	// 100 * 1.4 (peak) * 0.85 (weekend) = 119.
	got := testEngine().PredictFlowRate(zone, history, saturdayPeak)
	if got != 119 {
		t.Fatalf("prediction = %v, want 119", got)
	}
}

func TestPredictFlowRatePopulationScaling(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100, Population: 25000}
	history := readings(4, 100, 45, time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC))
	got := testEngine().PredictFlowRate(zone, history, weekdayOffPeak)
	if got != 50 {
		t.Fatalf("prediction = %v, want 50 for half the reference population", got)
	}
}

func TestPredictFlowRateJitterBounds(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100, Population: 50000}
	history := readings(4, 100, 45, time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC))
	eng := &Engine{JitterPct: 0.05, Rand: func() float64 { return 1 }}
	got := eng.PredictFlowRate(zone, history, weekdayOffPeak)
	if got != 105 {
		t.Fatalf("prediction = %v, want 105 at max positive jitter", got)
	}
	eng.Rand = func() float64 { return 0 }
	got = eng.PredictFlowRate(zone, history, weekdayOffPeak)
	if got != 95 {
		t.Fatalf("prediction = %v, want 95 at max negative jitter", got)
	}
}

func TestPredictDemandConfidence(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, Name: "North Ridge", FlowRate: 100, Population: 50000}
	eng := testEngine()

	got := eng.PredictDemand(zone, nil, weekdayOffPeak)
	if len(got.Horizon) != 2 {
		t.Fatalf("horizon length = %d, want 2", len(got.Horizon))
	}
	if got.Confidence != 0.5 {
		t.Fatalf("confidence = %v, want the 0.5 floor with no history", got.Confidence)
	}
	if got.Horizon[0].FlowRate != 100 {
		t.Fatalf("empty-history horizon should fall back to rated flow, got %v", got.Horizon[0].FlowRate)
	}

	history := readings(4, 100, 45, time.Date(2026, 1, 4, 13, 0, 0, 0, time.UTC))
	got = eng.PredictDemand(zone, history, weekdayOffPeak)
	if got.Confidence != 0.7 {
		t.Fatalf("confidence = %v, want 0.7 with 4 same-hour samples", got.Confidence)
	}
}

func TestDetectAnomaliesNeedsMinimumHistory(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, Name: "North Ridge", FlowRate: 100, Population: 50000}
	history := map[uuid.UUID][]models.SensorReading{
		zoneA: readings(9, 200, 20, weekdayOffPeak),
	}
	got := testEngine().DetectAnomalies([]models.Zone{zone}, history, nil, weekdayOffPeak)
	if len(got) != 0 {
		t.Fatalf("expected no detections under 10 readings, got %d", len(got))
	}
}

func TestDetectAnomaliesLeakSuppressesPressureDrop(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, Name: "North Ridge", FlowRate: 100, Population: 50000}
	history := map[uuid.UUID][]models.SensorReading{
		zoneA: readings(12, 130, 30, weekdayOffPeak),
	}
	got := testEngine().DetectAnomalies([]models.Zone{zone}, history, nil, weekdayOffPeak)
	if len(got) != 1 {
		t.Fatalf("expected exactly one detection, got %d: %+v", len(got), got)
	}
	if got[0].Type != models.AnomalyLeakDetected {
		t.Fatalf("type = %q, want leak_detected", got[0].Type)
	}
	if got[0].Severity != models.SeverityCritical || got[0].Confidence != 0.85 {
		t.Fatalf("unexpected severity/confidence: %+v", got[0])
	}
}

func TestDetectAnomaliesPressureDropWithoutLeak(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, Name: "North Ridge", FlowRate: 100, Population: 50000}
	// Pressure below 38 but above the leak floor, flow unremarkable.
	history := map[uuid.UUID][]models.SensorReading{
		zoneA: readings(12, 100, 36, weekdayOffPeak),
	}
	got := testEngine().DetectAnomalies([]models.Zone{zone}, history, nil, weekdayOffPeak)
	if len(got) != 1 {
		t.Fatalf("expected exactly one detection, got %d: %+v", len(got), got)
	}
	if got[0].Type != models.AnomalyPressureDrop {
		t.Fatalf("type = %q, want pressure_drop", got[0].Type)
	}
	if got[0].Severity != models.SeverityWarning || got[0].Confidence != 0.88 {
		t.Fatalf("unexpected severity/confidence: %+v", got[0])
	}
}

func TestDetectAnomaliesExcessPumping(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, Name: "Mill Creek", FlowRate: 100, Population: 100}
	history := map[uuid.UUID][]models.SensorReading{
		zoneA: readings(12, 100, 45, weekdayOffPeak),
	}
	pumps := []models.Pump{
		{PumpID: uuid.New(), ZoneID: zoneA, Status: models.PumpStatusActive, FlowRate: 150},
		{PumpID: uuid.New(), ZoneID: zoneA, Status: models.PumpStatusActive, FlowRate: 100},
		{PumpID: uuid.New(), ZoneID: zoneA, Status: models.PumpStatusIdle, FlowRate: 900},
		{PumpID: uuid.New(), ZoneID: zoneB, Status: models.PumpStatusActive, FlowRate: 900},
	}
	// Only the zone's active pumps count: 250 > 2 * 100.
	got := testEngine().DetectAnomalies([]models.Zone{zone}, history, pumps, weekdayOffPeak)
	if len(got) != 1 {
		t.Fatalf("expected exactly one detection, got %d: %+v", len(got), got)
	}
	if got[0].Type != models.AnomalyExcessPumping || got[0].Confidence != 0.92 {
		t.Fatalf("unexpected detection: %+v", got[0])
	}
}

func TestDetectAnomaliesIrregularPattern(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, Name: "North Ridge", FlowRate: 500, Population: 50000}
	history := make([]models.SensorReading, 0, 12)
	for i := 0; i < 12; i++ {
		f := 10.0
		if i%2 == 0 {
			f = 200.0
		}
		history = append(history, models.SensorReading{
			ZoneID:     zoneA,
			RecordedAt: weekdayOffPeak.Add(time.Duration(i) * time.Minute),
			FlowRate:   f,
			Pressure:   45,
		})
	}
	got := testEngine().DetectAnomalies([]models.Zone{zone}, map[uuid.UUID][]models.SensorReading{zoneA: history}, nil, weekdayOffPeak)
	if len(got) != 1 {
		t.Fatalf("expected exactly one detection, got %d: %+v", len(got), got)
	}
	if got[0].Type != models.AnomalyIrregularPattern || got[0].Severity != models.SeverityInfo {
		t.Fatalf("unexpected detection: %+v", got[0])
	}
}

func TestSchedulesFallbackWindows(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, Name: "North Ridge", FlowRate: 100, Population: 50000}
	pump := models.Pump{PumpID: uuid.New(), ZoneID: zoneA, FlowRate: 80}
	got := testEngine().GenerateOptimalSchedules([]models.Zone{zone}, []models.Pump{pump}, nil, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 fallback windows, got %d", len(got))
	}
	if got[0].StartHour != 6 || got[0].EndHour != 9 || got[0].FlowRate != 80 {
		t.Fatalf("unexpected morning window: %+v", got[0])
	}
	if got[1].StartHour != 18 || got[1].EndHour != 21 {
		t.Fatalf("unexpected evening window: %+v", got[1])
	}
	if got[0].Reason != "standard morning supply" || got[1].Reason != "standard evening supply" {
		t.Fatalf("unexpected reasons: %q / %q", got[0].Reason, got[1].Reason)
	}
}

func TestSchedulesPeakSpanSplitsAcrossPumps(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, Name: "North Ridge", FlowRate: 100, Population: 50000}
	srcID := uuid.MustParse("2d9fd6b4-96c3-4e7a-9d81-2f8a5d3e4c03")
	src := models.Source{SourceID: srcID, Name: "River Intake"}
	pumps := []models.Pump{
		{PumpID: uuid.New(), ZoneID: zoneA, SourceID: srcID, FlowRate: 80},
		{PumpID: uuid.New(), ZoneID: zoneA, SourceID: srcID, FlowRate: 80},
	}
	history := append(
		readings(4, 200, 45, time.Date(2026, 1, 4, 7, 0, 0, 0, time.UTC)),
		readings(4, 180, 45, time.Date(2026, 1, 4, 8, 0, 0, 0, time.UTC))...,
	)
	got := testEngine().GenerateOptimalSchedules([]models.Zone{zone}, pumps, []models.Source{src}, map[uuid.UUID][]models.SensorReading{zoneA: history})
	if len(got) != 2 {
		t.Fatalf("expected one schedule per pump, got %d", len(got))
	}
	for _, s := range got {
		if s.StartHour != 7 || s.EndHour != 8 {
			t.Fatalf("unexpected span: %+v", s)
		}
		if s.FlowRate != 100 {
			t.Fatalf("flow = %v, want peak demand split across 2 pumps", s.FlowRate)
		}
		if s.Reason != "peak demand coverage for North Ridge (50000 residents, predicted demand 200 lpm) from River Intake" {
			t.Fatalf("unexpected reason: %q", s.Reason)
		}
	}
}

func TestSchedulesSkipPumplessZones(t *testing.T) {
	zone := models.Zone{ZoneID: zoneA, FlowRate: 100, Population: 50000}
	got := testEngine().GenerateOptimalSchedules([]models.Zone{zone}, nil, nil, nil)
	if len(got) != 0 {
		t.Fatalf("expected no schedules without pumps, got %d", len(got))
	}
}

func TestEquityScoreDegenerateInputs(t *testing.T) {
	eng := testEngine()
	if got := eng.CalculateEquityScore(nil); got != 100 {
		t.Fatalf("empty score = %v, want 100", got)
	}
	one := []models.Zone{{ZoneID: zoneA, FlowRate: 100, Population: 1000}}
	if got := eng.CalculateEquityScore(one); got != 100 {
		t.Fatalf("single-zone score = %v, want 100", got)
	}
	zeroFlow := []models.Zone{
		{ZoneID: zoneA, FlowRate: 0, Population: 1000},
		{ZoneID: zoneB, FlowRate: 0, Population: 2000},
	}
	if got := eng.CalculateEquityScore(zeroFlow); got != 100 {
		t.Fatalf("zero-mean score = %v, want 100", got)
	}
}

func TestEquityScoreTwoZones(t *testing.T) {
	zones := []models.Zone{
		{ZoneID: zoneA, FlowRate: 100, Population: 1000},
		{ZoneID: zoneB, FlowRate: 50, Population: 1000},
	}
	// Per-capita 100 and 50: mean 75, stddev 25, CV 1/3, score 67.
	got := testEngine().CalculateEquityScore(zones)
	if got != 67 {
		t.Fatalf("score = %v, want 67", got)
	}
}

func TestEquityScoreIgnoresUnpopulatedZones(t *testing.T) {
	zones := []models.Zone{
		{ZoneID: zoneA, FlowRate: 100, Population: 1000},
		{ZoneID: zoneB, FlowRate: 100, Population: 1000},
		{ZoneID: uuid.New(), FlowRate: 999, Population: 0},
	}
	got := testEngine().CalculateEquityScore(zones)
	if got != 100 {
		t.Fatalf("score = %v, identical populated zones should score 100", got)
	}
}
