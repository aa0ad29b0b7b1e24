package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

const (
	TopicTelemetryReadings = "telemetry.readings"
	TopicWaterAlerts       = "water.alerts"
	TopicReportEvents      = "report.events"
	TopicScheduleAdvice    = "schedule.recommendations"
)
