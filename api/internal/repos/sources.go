package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"water-grid-monitoring-system/api/internal/models"
)

type SourcesRepo struct {
	pool *pgxpool.Pool
}

func NewSourcesRepo(pool *pgxpool.Pool) *SourcesRepo {
	return &SourcesRepo{pool: pool}
}

func (r *SourcesRepo) Create(ctx context.Context, source models.Source) (models.Source, error) {
	if source.SourceID == uuid.Nil {
		source.SourceID = uuid.New()
	}
	if source.CreatedAt.IsZero() {
		source.CreatedAt = time.Now().UTC()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sources (source_id, name, kind, capacity_lpm, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING source_id, name, kind, capacity_lpm, created_at
	`, source.SourceID, source.Name, source.Kind, source.CapacityLPM, source.CreatedAt).
		Scan(&source.SourceID, &source.Name, &source.Kind, &source.CapacityLPM, &source.CreatedAt)
	return source, err
}

func (r *SourcesRepo) GetByID(ctx context.Context, sourceID uuid.UUID) (models.Source, error) {
	var source models.Source
	err := r.pool.QueryRow(ctx, `
		SELECT source_id, name, kind, capacity_lpm, created_at
		FROM sources
		WHERE source_id = $1
	`, sourceID).
		Scan(&source.SourceID, &source.Name, &source.Kind, &source.CapacityLPM, &source.CreatedAt)
	return source, err
}

func (r *SourcesRepo) List(ctx context.Context, limit int) ([]models.Source, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT source_id, name, kind, capacity_lpm, created_at
		FROM sources
		ORDER BY name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := make([]models.Source, 0, limit)
	for rows.Next() {
		var source models.Source
		if err := rows.Scan(&source.SourceID, &source.Name, &source.Kind, &source.CapacityLPM, &source.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}
