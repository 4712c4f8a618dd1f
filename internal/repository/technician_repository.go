package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// TechnicianFilter captures directory listing parameters.
type TechnicianFilter struct {
	Specialty     *string
	AvailableOnly bool
	Limit         int
	Offset        int
}

// TechnicianRepository encapsulates technician persistence.
type TechnicianRepository interface {
	Create(ctx context.Context, tech *domain.Technician) error
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	GetByEmail(ctx context.Context, email string) (*domain.Technician, error)
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
	SetAvailability(ctx context.Context, id string, available bool) error
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository instantiates repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

func (r *technicianRepository) Create(ctx context.Context, tech *domain.Technician) error {
	const query = `
        INSERT INTO technicians (name, email, password_hash, specialty, is_available)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		tech.Name,
		tech.Email,
		tech.PasswordHash,
		tech.Specialty,
		tech.IsAvailable,
	).Scan(&tech.ID, &tech.CreatedAt, &tech.UpdatedAt)
}

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	const query = `
        SELECT id, name, email, password_hash, specialty, is_available, created_at, updated_at
        FROM technicians WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *technicianRepository) GetByEmail(ctx context.Context, email string) (*domain.Technician, error) {
	const query = `
        SELECT id, name, email, password_hash, specialty, is_available, created_at, updated_at
        FROM technicians WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *technicianRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Technician, error) {
	var tech domain.Technician
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&tech.ID,
		&tech.Name,
		&tech.Email,
		&tech.PasswordHash,
		&tech.Specialty,
		&tech.IsAvailable,
		&tech.CreatedAt,
		&tech.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &tech, nil
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	base := `SELECT id, name, email, password_hash, specialty, is_available, created_at, updated_at
             FROM technicians`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Specialty != nil && strings.TrimSpace(*filter.Specialty) != "" {
		args = append(args, strings.TrimSpace(*filter.Specialty))
		clauses = append(clauses, fmt.Sprintf("specialty=$%d", len(args)))
	}
	if filter.AvailableOnly {
		clauses = append(clauses, "is_available")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var tech domain.Technician
		if err := rows.Scan(
			&tech.ID,
			&tech.Name,
			&tech.Email,
			&tech.PasswordHash,
			&tech.Specialty,
			&tech.IsAvailable,
			&tech.CreatedAt,
			&tech.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, tech)
	}
	return result, rows.Err()
}

func (r *technicianRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE technicians SET is_available=$1, updated_at=NOW() WHERE id=$2`, available, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
