package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ZoneStatusOptimal     = "optimal"
	ZoneStatusLowPressure = "low-pressure"
	ZoneStatusHighDemand  = "high-demand"
	ZoneStatusMaintenance = "maintenance"
)

const (
	PumpStatusActive      = "active"
	PumpStatusIdle        = "idle"
	PumpStatusMaintenance = "maintenance"
)

const (
	AnomalyExcessPumping    = "excess_pumping"
	AnomalyLeakDetected     = "leak_detected"
	AnomalyPressureDrop     = "pressure_drop"
	AnomalyIrregularPattern = "irregular_pattern"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

type Zone struct {
	ZoneID     uuid.UUID `json:"zone_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	FlowRate   float64   `json:"flow_rate"`
	Pressure   float64   `json:"pressure"`
	Population int64     `json:"population"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Source struct {
	SourceID    uuid.UUID `json:"source_id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	CapacityLPM float64   `json:"capacity_lpm"`
	CreatedAt   time.Time `json:"created_at"`
}

type Pump struct {
	PumpID    uuid.UUID `json:"pump_id"`
	ZoneID    uuid.UUID `json:"zone_id"`
	SourceID  uuid.UUID `json:"source_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Schedule  string    `json:"schedule"`
	FlowRate  float64   `json:"flow_rate"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SensorReading struct {
	ReadingID   uuid.UUID `json:"reading_id"`
	ZoneID      uuid.UUID `json:"zone_id"`
	RecordedAt  time.Time `json:"recorded_at"`
	FlowRate    float64   `json:"flow_rate"`
	Pressure    float64   `json:"pressure"`
	Consumption *float64  `json:"consumption,omitempty"`
}

// AnomalyDetection is engine output; the engine never persists it. The
// ingest worker stores accepted detections as Alert rows.
type AnomalyDetection struct {
	Type       string    `json:"type"`
	ZoneID     uuid.UUID `json:"zone_id"`
	ZoneName   string    `json:"zone_name"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detected_at"`
}

type OptimalSchedule struct {
	PumpID    uuid.UUID `json:"pump_id"`
	ZoneID    uuid.UUID `json:"zone_id"`
	StartHour int       `json:"start_hour"`
	EndHour   int       `json:"end_hour"`
	FlowRate  float64   `json:"flow_rate"`
	Reason    string    `json:"reason"`
}

type Alert struct {
	AlertID    uuid.UUID `json:"alert_id"`
	ZoneID     uuid.UUID `json:"zone_id"`
	Type       string    `json:"type"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	Message    *string   `json:"message,omitempty"`
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detected_at"`
	Details    []byte    `json:"details,omitempty"`
}

// CitizenReport ledger fields (ReportHash, PreviousHash, BlockNumber,
// Signature) are written once at append time; Status is the only field a
// later update may touch.
type CitizenReport struct {
	ReportID     uuid.UUID `json:"report_id"`
	Type         string    `json:"type"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	ReportedAt   time.Time `json:"reported_at"`
	ReportHash   string    `json:"report_hash"`
	PreviousHash string    `json:"previous_hash"`
	BlockNumber  int64     `json:"block_number"`
	Signature    string    `json:"signature"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReportEvent is the consumer-side projection of a report lifecycle event
// taken off the stream.
type ReportEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	ReportID   uuid.UUID       `json:"report_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type AuditLog struct {
	AuditID      uuid.UUID
	OccurredAt   time.Time
	Subject      string
	Action       string
	ResourceType *string
	ResourceID   *string
	RequestID    string
	Method       string
	Path         string
	StatusCode   int
	DurationMS   int64
	ClientIP     string
	UserAgent    string
	Details      []byte
}

type OutboxEvent struct {
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	Topic         string
	Payload       []byte
	Status        string
	Attempts      int
	NextRetryAt   *time.Time
	LockedAt      *time.Time
	LockedBy      *string
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PublishedAt   *time.Time
}
