package repos

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"water-grid-monitoring-system/api/internal/models"
	"water-grid-monitoring-system/shared/workflow"
)

var ErrInvalidAlertTransition = errors.New("invalid alert status transition")

type AlertsRepo struct {
	pool *pgxpool.Pool
}

func NewAlertsRepo(pool *pgxpool.Pool) *AlertsRepo {
	return &AlertsRepo{pool: pool}
}

const alertColumns = "alert_id, zone_id, type, severity, status, message, confidence, detected_at, details"

func (r *AlertsRepo) Create(ctx context.Context, alert models.Alert) (models.Alert, error) {
	if alert.AlertID == uuid.Nil {
		alert.AlertID = uuid.New()
	}
	if alert.DetectedAt.IsZero() {
		alert.DetectedAt = time.Now().UTC()
	}
	if alert.Status == "" {
		alert.Status = workflow.AlertStatusOpen
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO alerts (alert_id, zone_id, type, severity, status, message, confidence, detected_at, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+alertColumns+`
	`, alert.AlertID, alert.ZoneID, alert.Type, alert.Severity, alert.Status, alert.Message, alert.Confidence, alert.DetectedAt, alert.Details).
		Scan(&alert.AlertID, &alert.ZoneID, &alert.Type, &alert.Severity, &alert.Status, &alert.Message, &alert.Confidence, &alert.DetectedAt, &alert.Details)
	return alert, err
}

func (r *AlertsRepo) GetByID(ctx context.Context, alertID uuid.UUID) (models.Alert, error) {
	var alert models.Alert
	err := r.pool.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE alert_id = $1
	`, alertID).
		Scan(&alert.AlertID, &alert.ZoneID, &alert.Type, &alert.Severity, &alert.Status, &alert.Message, &alert.Confidence, &alert.DetectedAt, &alert.Details)
	return alert, err
}

func (r *AlertsRepo) List(ctx context.Context, status string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows pgx.Rows
	var err error
	if status != "" {
		rows, err = r.pool.Query(ctx, `
			SELECT `+alertColumns+`
			FROM alerts
			WHERE status = $1
			ORDER BY detected_at DESC
			LIMIT $2
		`, status, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+alertColumns+`
			FROM alerts
			ORDER BY detected_at DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0, limit)
	for rows.Next() {
		var alert models.Alert
		if err := rows.Scan(&alert.AlertID, &alert.ZoneID, &alert.Type, &alert.Severity, &alert.Status, &alert.Message, &alert.Confidence, &alert.DetectedAt, &alert.Details); err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// LatestByZoneAndType backs the ingest worker's cooldown check against
// restarts, where the in-memory cooldown table starts empty.
func (r *AlertsRepo) LatestByZoneAndType(ctx context.Context, zoneID uuid.UUID, alertType string) (models.Alert, error) {
	var alert models.Alert
	err := r.pool.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE zone_id = $1 AND type = $2
		ORDER BY detected_at DESC
		LIMIT 1
	`, zoneID, alertType).
		Scan(&alert.AlertID, &alert.ZoneID, &alert.Type, &alert.Severity, &alert.Status, &alert.Message, &alert.Confidence, &alert.DetectedAt, &alert.Details)
	return alert, err
}

func (r *AlertsRepo) TransitionStatus(ctx context.Context, alertID uuid.UUID, toStatus string, notes string) (models.Alert, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Alert{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var alert models.Alert
	err = tx.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE alert_id = $1
		FOR UPDATE
	`, alertID).
		Scan(&alert.AlertID, &alert.ZoneID, &alert.Type, &alert.Severity, &alert.Status, &alert.Message, &alert.Confidence, &alert.DetectedAt, &alert.Details)
	if err != nil {
		return models.Alert{}, false, err
	}
	if alert.Status == toStatus {
		if err = tx.Commit(ctx); err != nil {
			return models.Alert{}, false, err
		}
		return alert, false, nil
	}
	if !workflow.CanTransitionAlert(alert.Status, toStatus) {
		err = ErrInvalidAlertTransition
		return alert, false, err
	}

	var details []byte
	if notes != "" {
		details, _ = json.Marshal(map[string]any{"notes": notes})
	}
	err = tx.QueryRow(ctx, `
		UPDATE alerts
		SET status = $2, details = COALESCE($3, details)
		WHERE alert_id = $1
		RETURNING `+alertColumns+`
	`, alertID, toStatus, details).
		Scan(&alert.AlertID, &alert.ZoneID, &alert.Type, &alert.Severity, &alert.Status, &alert.Message, &alert.Confidence, &alert.DetectedAt, &alert.Details)
	if err != nil {
		return models.Alert{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Alert{}, false, err
	}
	return alert, true, nil
}
