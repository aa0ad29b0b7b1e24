package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"water-grid-monitoring-system/api/internal/models"
)

type ZonesRepo struct {
	pool *pgxpool.Pool
}

func NewZonesRepo(pool *pgxpool.Pool) *ZonesRepo {
	return &ZonesRepo{pool: pool}
}

const zoneColumns = "zone_id, name, status, flow_rate, pressure, population, latitude, longitude, updated_at"

func (r *ZonesRepo) Create(ctx context.Context, zone models.Zone) (models.Zone, error) {
	if zone.ZoneID == uuid.Nil {
		zone.ZoneID = uuid.New()
	}
	if zone.Status == "" {
		zone.Status = models.ZoneStatusOptimal
	}
	if zone.UpdatedAt.IsZero() {
		zone.UpdatedAt = time.Now().UTC()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO zones (zone_id, name, status, flow_rate, pressure, population, latitude, longitude, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+zoneColumns+`
	`, zone.ZoneID, zone.Name, zone.Status, zone.FlowRate, zone.Pressure, zone.Population, zone.Latitude, zone.Longitude, zone.UpdatedAt).
		Scan(&zone.ZoneID, &zone.Name, &zone.Status, &zone.FlowRate, &zone.Pressure, &zone.Population, &zone.Latitude, &zone.Longitude, &zone.UpdatedAt)
	return zone, err
}

func (r *ZonesRepo) GetByID(ctx context.Context, zoneID uuid.UUID) (models.Zone, error) {
	var zone models.Zone
	err := r.pool.QueryRow(ctx, `
		SELECT `+zoneColumns+`
		FROM zones
		WHERE zone_id = $1
	`, zoneID).
		Scan(&zone.ZoneID, &zone.Name, &zone.Status, &zone.FlowRate, &zone.Pressure, &zone.Population, &zone.Latitude, &zone.Longitude, &zone.UpdatedAt)
	return zone, err
}

func (r *ZonesRepo) List(ctx context.Context, limit int, offset int) ([]models.Zone, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+zoneColumns+`
		FROM zones
		ORDER BY name ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	zones := make([]models.Zone, 0, limit)
	for rows.Next() {
		var zone models.Zone
		if err := rows.Scan(&zone.ZoneID, &zone.Name, &zone.Status, &zone.FlowRate, &zone.Pressure, &zone.Population, &zone.Latitude, &zone.Longitude, &zone.UpdatedAt); err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

// Update replaces the editable fields and stamps updated_at, which also
// restarts the manual-override freshness window.
func (r *ZonesRepo) Update(ctx context.Context, zone models.Zone) (models.Zone, error) {
	zone.UpdatedAt = time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		UPDATE zones
		SET name = $2, status = $3, flow_rate = $4, pressure = $5, population = $6, latitude = $7, longitude = $8, updated_at = $9
		WHERE zone_id = $1
		RETURNING `+zoneColumns+`
	`, zone.ZoneID, zone.Name, zone.Status, zone.FlowRate, zone.Pressure, zone.Population, zone.Latitude, zone.Longitude, zone.UpdatedAt).
		Scan(&zone.ZoneID, &zone.Name, &zone.Status, &zone.FlowRate, &zone.Pressure, &zone.Population, &zone.Latitude, &zone.Longitude, &zone.UpdatedAt)
	return zone, err
}

// SetObservedState stores engine-derived status and flow without touching
// updated_at, so a sensor-driven refresh never extends the override window.
func (r *ZonesRepo) SetObservedState(ctx context.Context, zoneID uuid.UUID, status string, flowRate float64, pressure float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE zones
		SET status = $2, flow_rate = $3, pressure = $4
		WHERE zone_id = $1
	`, zoneID, status, flowRate, pressure)
	return err
}

func (r *ZonesRepo) Delete(ctx context.Context, zoneID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM zones WHERE zone_id = $1`, zoneID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
