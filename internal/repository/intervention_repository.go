package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// InterventionFilter captures listing parameters.
type InterventionFilter struct {
	ClientID      *string
	TechnicianID  *string
	ComplaintID   *string
	Statuses      []domain.InterventionStatus
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
	Limit         int
	Offset        int
}

// InterventionStats aggregates analytics reads over interventions.
type InterventionStats struct {
	CountByStatus         map[domain.InterventionStatus]int64
	CompletedRevenueCents int64
	CompletedByTechnician map[string]int64
	FreeCount             int64
}

// InterventionRepository encapsulates intervention persistence.
type InterventionRepository interface {
	Create(ctx context.Context, iv *domain.Intervention) error
	Update(ctx context.Context, iv *domain.Intervention) error
	GetByID(ctx context.Context, id string) (*domain.Intervention, error)
	ListWithFilter(ctx context.Context, filter InterventionFilter) ([]domain.Intervention, error)
	Stats(ctx context.Context) (*InterventionStats, error)
}

type interventionRepository struct {
	pool *pgxpool.Pool
}

// NewInterventionRepository instantiates repository.
func NewInterventionRepository(pool *pgxpool.Pool) InterventionRepository {
	return &interventionRepository{pool: pool}
}

func (r *interventionRepository) Create(ctx context.Context, iv *domain.Intervention) error {
	const query = `
        INSERT INTO interventions (reference_key, complaint_id, client_id, technician_id, scheduled_date, status, is_free, labor_cents, comment)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		iv.ReferenceKey,
		iv.ComplaintID,
		iv.ClientID,
		iv.TechnicianID,
		iv.ScheduledDate,
		iv.Status,
		iv.IsFree,
		iv.LaborCents,
		iv.Comment,
	).Scan(&iv.ID, &iv.CreatedAt, &iv.UpdatedAt)
}

// Update persists every mutable field. is_free is deliberately absent: the
// warranty flag is frozen at creation time.
func (r *interventionRepository) Update(ctx context.Context, iv *domain.Intervention) error {
	const query = `
        UPDATE interventions SET technician_id=$1, scheduled_date=$2, status=$3, labor_cents=$4,
            comment=$5, completed_at=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		iv.TechnicianID,
		iv.ScheduledDate,
		iv.Status,
		iv.LaborCents,
		iv.Comment,
		iv.CompletedAt,
		iv.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *interventionRepository) GetByID(ctx context.Context, id string) (*domain.Intervention, error) {
	const query = `
        SELECT id, reference_key, complaint_id, client_id, technician_id, scheduled_date,
               status, is_free, labor_cents, comment, created_at, updated_at, completed_at
        FROM interventions WHERE id=$1`
	var iv domain.Intervention
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&iv.ID,
		&iv.ReferenceKey,
		&iv.ComplaintID,
		&iv.ClientID,
		&iv.TechnicianID,
		&iv.ScheduledDate,
		&iv.Status,
		&iv.IsFree,
		&iv.LaborCents,
		&iv.Comment,
		&iv.CreatedAt,
		&iv.UpdatedAt,
		&iv.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &iv, nil
}

func (r *interventionRepository) ListWithFilter(ctx context.Context, filter InterventionFilter) ([]domain.Intervention, error) {
	base := `SELECT id, reference_key, complaint_id, client_id, technician_id, scheduled_date,
                    status, is_free, labor_cents, comment, created_at, updated_at, completed_at
             FROM interventions`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if filter.ComplaintID != nil {
		args = append(args, *filter.ComplaintID)
		clauses = append(clauses, fmt.Sprintf("complaint_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ScheduledFrom != nil {
		args = append(args, *filter.ScheduledFrom)
		clauses = append(clauses, fmt.Sprintf("scheduled_date >= $%d", len(args)))
	}
	if filter.ScheduledTo != nil {
		args = append(args, *filter.ScheduledTo)
		clauses = append(clauses, fmt.Sprintf("scheduled_date <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY scheduled_date DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInterventions(rows)
}

func (r *interventionRepository) Stats(ctx context.Context) (*InterventionStats, error) {
	stats := &InterventionStats{
		CountByStatus:         make(map[domain.InterventionStatus]int64),
		CompletedByTechnician: make(map[string]int64),
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*), COUNT(*) FILTER (WHERE is_free) FROM interventions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var status domain.InterventionStatus
		var count, free int64
		if err := rows.Scan(&status, &count, &free); err != nil {
			rows.Close()
			return nil, err
		}
		stats.CountByStatus[status] = count
		stats.FreeCount += free
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const revenueQuery = `
        SELECT COALESCE(SUM(COALESCE(i.labor_cents, 0) + COALESCE(p.parts_cents, 0)), 0)
        FROM interventions i
        LEFT JOIN (
            SELECT intervention_id, SUM(quantity * unit_price_cents) AS parts_cents
            FROM part_usages GROUP BY intervention_id
        ) p ON p.intervention_id = i.id
        WHERE i.status = 'COMPLETED' AND NOT i.is_free`
	if err := r.pool.QueryRow(ctx, revenueQuery).Scan(&stats.CompletedRevenueCents); err != nil {
		return nil, err
	}

	techRows, err := r.pool.Query(ctx,
		`SELECT technician_id, COUNT(*) FROM interventions
         WHERE status = 'COMPLETED' AND technician_id IS NOT NULL GROUP BY technician_id`)
	if err != nil {
		return nil, err
	}
	defer techRows.Close()
	for techRows.Next() {
		var techID string
		var count int64
		if err := techRows.Scan(&techID, &count); err != nil {
			return nil, err
		}
		stats.CompletedByTechnician[techID] = count
	}
	return stats, techRows.Err()
}

func scanInterventions(rows pgx.Rows) ([]domain.Intervention, error) {
	var result []domain.Intervention
	for rows.Next() {
		var iv domain.Intervention
		if err := rows.Scan(
			&iv.ID,
			&iv.ReferenceKey,
			&iv.ComplaintID,
			&iv.ClientID,
			&iv.TechnicianID,
			&iv.ScheduledDate,
			&iv.Status,
			&iv.IsFree,
			&iv.LaborCents,
			&iv.Comment,
			&iv.CreatedAt,
			&iv.UpdatedAt,
			&iv.CompletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}
	return result, rows.Err()
}
