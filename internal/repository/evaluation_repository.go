package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// ErrEvaluationExists signals the one-evaluation-per-intervention unique
// index fired; concurrent submissions race past the service's exists check.
var ErrEvaluationExists = errors.New("intervention already evaluated")

// EvaluationRepository encapsulates evaluation persistence.
type EvaluationRepository interface {
	Create(ctx context.Context, eval *domain.Evaluation) error
	GetByIntervention(ctx context.Context, interventionID string) (*domain.Evaluation, error)
	ExistsForIntervention(ctx context.Context, interventionID string) (bool, error)
}

type evaluationRepository struct {
	pool *pgxpool.Pool
}

// NewEvaluationRepository instantiates repository.
func NewEvaluationRepository(pool *pgxpool.Pool) EvaluationRepository {
	return &evaluationRepository{pool: pool}
}

func (r *evaluationRepository) Create(ctx context.Context, eval *domain.Evaluation) error {
	const query = `
        INSERT INTO evaluations (intervention_id, client_id, rating, comment)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, query,
		eval.InterventionID,
		eval.ClientID,
		eval.Rating,
		eval.Comment,
	).Scan(&eval.ID, &eval.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrEvaluationExists
		}
		return err
	}
	return nil
}

func (r *evaluationRepository) GetByIntervention(ctx context.Context, interventionID string) (*domain.Evaluation, error) {
	const query = `
        SELECT id, intervention_id, client_id, rating, comment, created_at
        FROM evaluations WHERE intervention_id=$1`
	var eval domain.Evaluation
	if err := r.pool.QueryRow(ctx, query, interventionID).Scan(
		&eval.ID,
		&eval.InterventionID,
		&eval.ClientID,
		&eval.Rating,
		&eval.Comment,
		&eval.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &eval, nil
}

func (r *evaluationRepository) ExistsForIntervention(ctx context.Context, interventionID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM evaluations WHERE intervention_id=$1)`, interventionID).Scan(&exists)
	return exists, err
}
