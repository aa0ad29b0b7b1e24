package repos

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"water-grid-monitoring-system/api/internal/models"
)

type ReportEventsRepo struct {
	pool *pgxpool.Pool
}

func NewReportEventsRepo(pool *pgxpool.Pool) *ReportEventsRepo {
	return &ReportEventsRepo{pool: pool}
}

// InsertFromStream is idempotent on event_id so redelivered messages are
// safe to replay.
func (r *ReportEventsRepo) InsertFromStream(ctx context.Context, event models.ReportEvent) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO report_events (event_id, report_id, event_type, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
	`, event.EventID, event.ReportID, event.EventType, event.OccurredAt, event.Payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ReportEventsRepo) ListByReport(ctx context.Context, reportID string, limit int) ([]models.ReportEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, report_id, event_type, occurred_at, payload
		FROM report_events
		WHERE report_id = $1
		ORDER BY occurred_at ASC
		LIMIT $2
	`, reportID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.ReportEvent, 0, 16)
	for rows.Next() {
		var event models.ReportEvent
		if err := rows.Scan(&event.EventID, &event.ReportID, &event.EventType, &event.OccurredAt, &event.Payload); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
