package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"water-grid-monitoring-system/api/internal/models"
)

type PumpsRepo struct {
	pool *pgxpool.Pool
}

func NewPumpsRepo(pool *pgxpool.Pool) *PumpsRepo {
	return &PumpsRepo{pool: pool}
}

const pumpColumns = "pump_id, zone_id, source_id, name, status, schedule, flow_rate, updated_at"

func (r *PumpsRepo) Create(ctx context.Context, pump models.Pump) (models.Pump, error) {
	if pump.PumpID == uuid.Nil {
		pump.PumpID = uuid.New()
	}
	if pump.Status == "" {
		pump.Status = models.PumpStatusIdle
	}
	if pump.UpdatedAt.IsZero() {
		pump.UpdatedAt = time.Now().UTC()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pumps (pump_id, zone_id, source_id, name, status, schedule, flow_rate, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+pumpColumns+`
	`, pump.PumpID, pump.ZoneID, pump.SourceID, pump.Name, pump.Status, pump.Schedule, pump.FlowRate, pump.UpdatedAt).
		Scan(&pump.PumpID, &pump.ZoneID, &pump.SourceID, &pump.Name, &pump.Status, &pump.Schedule, &pump.FlowRate, &pump.UpdatedAt)
	return pump, err
}

func (r *PumpsRepo) GetByID(ctx context.Context, pumpID uuid.UUID) (models.Pump, error) {
	var pump models.Pump
	err := r.pool.QueryRow(ctx, `
		SELECT `+pumpColumns+`
		FROM pumps
		WHERE pump_id = $1
	`, pumpID).
		Scan(&pump.PumpID, &pump.ZoneID, &pump.SourceID, &pump.Name, &pump.Status, &pump.Schedule, &pump.FlowRate, &pump.UpdatedAt)
	return pump, err
}

func (r *PumpsRepo) List(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Pump, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows pgx.Rows
	var err error
	if zoneID != uuid.Nil {
		rows, err = r.pool.Query(ctx, `
			SELECT `+pumpColumns+`
			FROM pumps
			WHERE zone_id = $1
			ORDER BY name ASC
			LIMIT $2
		`, zoneID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT `+pumpColumns+`
			FROM pumps
			ORDER BY name ASC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pumps := make([]models.Pump, 0, limit)
	for rows.Next() {
		var pump models.Pump
		if err := rows.Scan(&pump.PumpID, &pump.ZoneID, &pump.SourceID, &pump.Name, &pump.Status, &pump.Schedule, &pump.FlowRate, &pump.UpdatedAt); err != nil {
			return nil, err
		}
		pumps = append(pumps, pump)
	}
	return pumps, rows.Err()
}

func (r *PumpsRepo) UpdateStatus(ctx context.Context, pumpID uuid.UUID, status string, schedule string) (models.Pump, error) {
	var pump models.Pump
	err := r.pool.QueryRow(ctx, `
		UPDATE pumps
		SET status = $2, schedule = COALESCE(NULLIF($3, ''), schedule), updated_at = now()
		WHERE pump_id = $1
		RETURNING `+pumpColumns+`
	`, pumpID, status, schedule).
		Scan(&pump.PumpID, &pump.ZoneID, &pump.SourceID, &pump.Name, &pump.Status, &pump.Schedule, &pump.FlowRate, &pump.UpdatedAt)
	return pump, err
}
