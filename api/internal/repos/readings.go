package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"water-grid-monitoring-system/api/internal/models"
)

type ReadingsRepo struct {
	pool *pgxpool.Pool
}

func NewReadingsRepo(pool *pgxpool.Pool) *ReadingsRepo {
	return &ReadingsRepo{pool: pool}
}

const readingColumns = "reading_id, zone_id, recorded_at, flow_rate, pressure, consumption"

func (r *ReadingsRepo) Insert(ctx context.Context, db DBTX, reading models.SensorReading) (models.SensorReading, error) {
	if reading.ReadingID == uuid.Nil {
		reading.ReadingID = uuid.New()
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now().UTC()
	}
	err := db.QueryRow(ctx, `
		INSERT INTO sensor_readings (reading_id, zone_id, recorded_at, flow_rate, pressure, consumption)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+readingColumns+`
	`, reading.ReadingID, reading.ZoneID, reading.RecordedAt, reading.FlowRate, reading.Pressure, reading.Consumption).
		Scan(&reading.ReadingID, &reading.ZoneID, &reading.RecordedAt, &reading.FlowRate, &reading.Pressure, &reading.Consumption)
	return reading, err
}

// InsertOne stores a reading outside any transaction.
func (r *ReadingsRepo) InsertOne(ctx context.Context, reading models.SensorReading) (models.SensorReading, error) {
	return r.Insert(ctx, r.pool, reading)
}

// RecentByZone returns the newest readings in chronological order, oldest
// first, which is the order the analytics engine expects.
func (r *ReadingsRepo) RecentByZone(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.SensorReading, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+readingColumns+`
		FROM (
			SELECT `+readingColumns+`
			FROM sensor_readings
			WHERE zone_id = $1
			ORDER BY recorded_at DESC
			LIMIT $2
		) newest
		ORDER BY recorded_at ASC
	`, zoneID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// HistoryByZone returns readings since a cutoff, oldest first.
func (r *ReadingsRepo) HistoryByZone(ctx context.Context, zoneID uuid.UUID, since time.Time, limit int) ([]models.SensorReading, error) {
	if limit <= 0 {
		limit = 2000
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+readingColumns+`
		FROM sensor_readings
		WHERE zone_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
		LIMIT $3
	`, zoneID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReadings(rows)
}

// HistorySince loads readings for every zone in one pass, grouped by zone
// and oldest first within each group.
func (r *ReadingsRepo) HistorySince(ctx context.Context, since time.Time) (map[uuid.UUID][]models.SensorReading, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+readingColumns+`
		FROM sensor_readings
		WHERE recorded_at >= $1
		ORDER BY zone_id, recorded_at ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byZone := make(map[uuid.UUID][]models.SensorReading)
	for rows.Next() {
		var reading models.SensorReading
		if err := rows.Scan(&reading.ReadingID, &reading.ZoneID, &reading.RecordedAt, &reading.FlowRate, &reading.Pressure, &reading.Consumption); err != nil {
			return nil, err
		}
		byZone[reading.ZoneID] = append(byZone[reading.ZoneID], reading)
	}
	return byZone, rows.Err()
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanReadings(rows rowScanner) ([]models.SensorReading, error) {
	readings := make([]models.SensorReading, 0, 32)
	for rows.Next() {
		var reading models.SensorReading
		if err := rows.Scan(&reading.ReadingID, &reading.ZoneID, &reading.RecordedAt, &reading.FlowRate, &reading.Pressure, &reading.Consumption); err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}
