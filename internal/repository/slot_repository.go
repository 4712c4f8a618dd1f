package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/field-service/internal/domain"
)

// ErrSlotAlreadyReserved signals that a conditional reservation lost the
// race: the slot exists but another caller holds it.
var ErrSlotAlreadyReserved = errors.New("slot already reserved")

// ErrSlotReserved signals an operation that requires an unreserved slot.
var ErrSlotReserved = errors.New("slot is reserved")

// SlotCounts summarizes the slot inventory.
type SlotCounts struct {
	Total    int64
	Reserved int64
	Free     int64
}

// SlotRepository encapsulates slot persistence.
type SlotRepository interface {
	Create(ctx context.Context, slot *domain.Slot) error
	CreateIgnoreDuplicate(ctx context.Context, slot *domain.Slot) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Slot, error)
	DeleteUnreserved(ctx context.Context, id string) error
	HasOverlap(ctx context.Context, technicianID string, start, end time.Time) (bool, error)
	ListByTechnicianRange(ctx context.Context, technicianID string, from, to time.Time) ([]domain.Slot, error)
	Reserve(ctx context.Context, id, interventionID string) error
	Release(ctx context.Context, id string) error
	ListFree(ctx context.Context, from, to time.Time, technicianID *string, limit, offset int) ([]domain.Slot, error)
	List(ctx context.Context, limit, offset int) ([]domain.Slot, error)
	Counts(ctx context.Context) (SlotCounts, error)
}

type slotRepository struct {
	pool *pgxpool.Pool
}

// NewSlotRepository instantiates repository.
func NewSlotRepository(pool *pgxpool.Pool) SlotRepository {
	return &slotRepository{pool: pool}
}

const slotColumns = `id, technician_id, start_time, end_time, is_reserved, intervention_id, created_at, updated_at`

func (r *slotRepository) Create(ctx context.Context, slot *domain.Slot) error {
	const query = `
        INSERT INTO slots (technician_id, start_time, end_time)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		slot.TechnicianID,
		slot.StartTime,
		slot.EndTime,
	).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
}

// CreateIgnoreDuplicate inserts a slot unless an identical window already
// exists for the technician. Returns whether a row was created, making
// recurring generation idempotent.
func (r *slotRepository) CreateIgnoreDuplicate(ctx context.Context, slot *domain.Slot) (bool, error) {
	const query = `
        INSERT INTO slots (technician_id, start_time, end_time)
        VALUES ($1,$2,$3)
        ON CONFLICT (technician_id, start_time, end_time) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, slot.TechnicianID, slot.StartTime, slot.EndTime)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *slotRepository) GetByID(ctx context.Context, id string) (*domain.Slot, error) {
	query := fmt.Sprintf(`SELECT %s FROM slots WHERE id=$1`, slotColumns)
	var slot domain.Slot
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&slot.ID,
		&slot.TechnicianID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.IsReserved,
		&slot.InterventionID,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &slot, nil
}

// DeleteUnreserved removes a slot only while it is free.
func (r *slotRepository) DeleteUnreserved(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE id=$1 AND NOT is_reserved`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM slots WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrSlotReserved
	}
	return pgx.ErrNoRows
}

// HasOverlap checks the half-open interval [start, end) against the
// technician's stored slots.
func (r *slotRepository) HasOverlap(ctx context.Context, technicianID string, start, end time.Time) (bool, error) {
	const query = `
        SELECT EXISTS(
            SELECT 1 FROM slots
            WHERE technician_id=$1 AND start_time < $3 AND end_time > $2)`
	var overlaps bool
	err := r.pool.QueryRow(ctx, query, technicianID, start, end).Scan(&overlaps)
	return overlaps, err
}

func (r *slotRepository) ListByTechnicianRange(ctx context.Context, technicianID string, from, to time.Time) ([]domain.Slot, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM slots
        WHERE technician_id=$1 AND start_time < $3 AND end_time > $2
        ORDER BY start_time ASC`, slotColumns)
	rows, err := r.pool.Query(ctx, query, technicianID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

// Reserve atomically flips a free slot to reserved. Of N concurrent callers
// targeting one free slot exactly one sees success; the rest get
// ErrSlotAlreadyReserved.
func (r *slotRepository) Reserve(ctx context.Context, id, interventionID string) error {
	const query = `
        UPDATE slots SET is_reserved=TRUE, intervention_id=$2, updated_at=NOW()
        WHERE id=$1 AND NOT is_reserved`
	cmd, err := r.pool.Exec(ctx, query, id, interventionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM slots WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrSlotAlreadyReserved
	}
	return pgx.ErrNoRows
}

// Release clears a reservation unconditionally; the slot becomes reusable.
func (r *slotRepository) Release(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE slots SET is_reserved=FALSE, intervention_id=NULL, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slotRepository) ListFree(ctx context.Context, from, to time.Time, technicianID *string, limit, offset int) ([]domain.Slot, error) {
	clauses := []string{"NOT is_reserved", "start_time >= $1", "end_time <= $2"}
	args := []any{from, to}
	if technicianID != nil {
		args = append(args, *technicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM slots WHERE %s ORDER BY start_time ASC LIMIT %d OFFSET %d`,
		slotColumns, strings.Join(clauses, " AND "), limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (r *slotRepository) List(ctx context.Context, limit, offset int) ([]domain.Slot, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM slots ORDER BY start_time DESC LIMIT %d OFFSET %d`,
		slotColumns, limit, offset)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (r *slotRepository) Counts(ctx context.Context) (SlotCounts, error) {
	var counts SlotCounts
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_reserved) FROM slots`).
		Scan(&counts.Total, &counts.Reserved)
	if err != nil {
		return SlotCounts{}, err
	}
	counts.Free = counts.Total - counts.Reserved
	return counts, nil
}

func scanSlots(rows pgx.Rows) ([]domain.Slot, error) {
	var result []domain.Slot
	for rows.Next() {
		var slot domain.Slot
		if err := rows.Scan(
			&slot.ID,
			&slot.TechnicianID,
			&slot.StartTime,
			&slot.EndTime,
			&slot.IsReserved,
			&slot.InterventionID,
			&slot.CreatedAt,
			&slot.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, slot)
	}
	return result, rows.Err()
}
