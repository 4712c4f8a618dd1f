package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// ErrActiveRequestExists signals the single-active-request invariant: the
// client already has a Pending request, or a Confirmed one bound to a slot
// whose end time is still ahead.
var ErrActiveRequestExists = errors.New("client already has an active appointment request")

// AppointmentRequestFilter captures listing parameters.
type AppointmentRequestFilter struct {
	ClientID *string
	Statuses []domain.AppointmentRequestStatus
	Limit    int
	Offset   int
}

// AppointmentRequestRepository encapsulates request persistence.
type AppointmentRequestRepository interface {
	CreateIfNoActive(ctx context.Context, req *domain.AppointmentRequest, now time.Time) error
	GetByID(ctx context.Context, id string) (*domain.AppointmentRequest, error)
	Update(ctx context.Context, req *domain.AppointmentRequest) error
	ListWithFilter(ctx context.Context, filter AppointmentRequestFilter) ([]domain.AppointmentRequest, error)
}

type appointmentRequestRepository struct {
	pool *pgxpool.Pool
}

// NewAppointmentRequestRepository instantiates repository.
func NewAppointmentRequestRepository(pool *pgxpool.Pool) AppointmentRequestRepository {
	return &appointmentRequestRepository{pool: pool}
}

const requestColumns = `id, client_id, slot_id, desired_date, preference, motive, status, comment, created_at, processed_at`

// CreateIfNoActive inserts the request inside a transaction that locks the
// client's existing rows for the duration of the active-request check,
// closing the race between two near-simultaneous submissions. The Pending
// arm is additionally backed by a partial unique index.
func (r *appointmentRequestRepository) CreateIfNoActive(ctx context.Context, req *domain.AppointmentRequest, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const activeQuery = `
        SELECT r.id FROM appointment_requests r
        LEFT JOIN slots s ON s.id = r.slot_id
        WHERE r.client_id = $1
          AND (r.status = 'PENDING' OR (r.status = 'CONFIRMED' AND s.end_time > $2))
        FOR UPDATE OF r`
	rows, err := tx.Query(ctx, activeQuery, req.ClientID, now)
	if err != nil {
		return err
	}
	active := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if active {
		return ErrActiveRequestExists
	}

	const insertQuery = `
        INSERT INTO appointment_requests (client_id, slot_id, desired_date, preference, motive, status, comment)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertQuery,
		req.ClientID,
		req.SlotID,
		req.DesiredDate,
		req.Preference,
		req.Motive,
		req.Status,
		req.Comment,
	).Scan(&req.ID, &req.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrActiveRequestExists
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *appointmentRequestRepository) GetByID(ctx context.Context, id string) (*domain.AppointmentRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointment_requests WHERE id=$1`, requestColumns)
	var req domain.AppointmentRequest
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.ClientID,
		&req.SlotID,
		&req.DesiredDate,
		&req.Preference,
		&req.Motive,
		&req.Status,
		&req.Comment,
		&req.CreatedAt,
		&req.ProcessedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *appointmentRequestRepository) Update(ctx context.Context, req *domain.AppointmentRequest) error {
	const query = `
        UPDATE appointment_requests SET slot_id=$1, status=$2, comment=$3, processed_at=$4
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		req.SlotID,
		req.Status,
		req.Comment,
		req.ProcessedAt,
		req.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *appointmentRequestRepository) ListWithFilter(ctx context.Context, filter AppointmentRequestFilter) ([]domain.AppointmentRequest, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM appointment_requests WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		requestColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AppointmentRequest
	for rows.Next() {
		var req domain.AppointmentRequest
		if err := rows.Scan(
			&req.ID,
			&req.ClientID,
			&req.SlotID,
			&req.DesiredDate,
			&req.Preference,
			&req.Motive,
			&req.Status,
			&req.Comment,
			&req.CreatedAt,
			&req.ProcessedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
