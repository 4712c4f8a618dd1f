package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// PartUsageRepository encapsulates part-usage persistence.
type PartUsageRepository interface {
	Create(ctx context.Context, usage *domain.PartUsage) error
	ListByIntervention(ctx context.Context, interventionID string) ([]domain.PartUsage, error)
}

type partUsageRepository struct {
	pool *pgxpool.Pool
}

// NewPartUsageRepository instantiates repository.
func NewPartUsageRepository(pool *pgxpool.Pool) PartUsageRepository {
	return &partUsageRepository{pool: pool}
}

func (r *partUsageRepository) Create(ctx context.Context, usage *domain.PartUsage) error {
	const query = `
        INSERT INTO part_usages (intervention_id, part_id, part_name, quantity, unit_price_cents)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		usage.InterventionID,
		usage.PartID,
		usage.PartName,
		usage.Quantity,
		usage.UnitPriceCents,
	).Scan(&usage.ID, &usage.CreatedAt)
}

func (r *partUsageRepository) ListByIntervention(ctx context.Context, interventionID string) ([]domain.PartUsage, error) {
	const query = `
        SELECT id, intervention_id, part_id, part_name, quantity, unit_price_cents, created_at
        FROM part_usages WHERE intervention_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, interventionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PartUsage
	for rows.Next() {
		var usage domain.PartUsage
		if err := rows.Scan(
			&usage.ID,
			&usage.InterventionID,
			&usage.PartID,
			&usage.PartName,
			&usage.Quantity,
			&usage.UnitPriceCents,
			&usage.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, usage)
	}
	return result, rows.Err()
}
