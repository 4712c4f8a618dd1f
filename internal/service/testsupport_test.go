package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/external"
	"github.com/spec-kit/field-service/internal/repository"
)

// recordingDispatcher delivers synchronously and keeps every published
// event so tests can assert on them.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.Event, len(d.events))
	copy(out, d.events)
	return out
}

type fakeInterventionRepo struct {
	mu    sync.Mutex
	seq   int
	items map[string]domain.Intervention
}

func newFakeInterventionRepo() *fakeInterventionRepo {
	return &fakeInterventionRepo{items: map[string]domain.Intervention{}}
}

func (r *fakeInterventionRepo) Create(_ context.Context, iv *domain.Intervention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	iv.ID = "iv-" + strconv.Itoa(r.seq)
	iv.CreatedAt = time.Now()
	iv.UpdatedAt = iv.CreatedAt
	r.items[iv.ID] = *iv
	return nil
}

func (r *fakeInterventionRepo) Update(_ context.Context, iv *domain.Intervention) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[iv.ID]; !ok {
		return pgx.ErrNoRows
	}
	iv.UpdatedAt = time.Now()
	r.items[iv.ID] = *iv
	return nil
}

func (r *fakeInterventionRepo) GetByID(_ context.Context, id string) (*domain.Intervention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iv, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := iv
	return &cp, nil
}

func (r *fakeInterventionRepo) ListWithFilter(_ context.Context, filter repository.InterventionFilter) ([]domain.Intervention, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Intervention
	for _, iv := range r.items {
		if filter.ClientID != nil && iv.ClientID != *filter.ClientID {
			continue
		}
		if filter.TechnicianID != nil && (iv.TechnicianID == nil || *iv.TechnicianID != *filter.TechnicianID) {
			continue
		}
		out = append(out, iv)
	}
	return out, nil
}

func (r *fakeInterventionRepo) Stats(_ context.Context) (*repository.InterventionStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &repository.InterventionStats{
		CountByStatus:         map[domain.InterventionStatus]int64{},
		CompletedByTechnician: map[string]int64{},
	}
	for _, iv := range r.items {
		stats.CountByStatus[iv.Status]++
		if iv.IsFree {
			stats.FreeCount++
		}
	}
	return stats, nil
}

type fakePartUsageRepo struct {
	mu    sync.Mutex
	seq   int
	items []domain.PartUsage
}

func (r *fakePartUsageRepo) Create(_ context.Context, usage *domain.PartUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	usage.ID = "pu-" + strconv.Itoa(r.seq)
	usage.CreatedAt = time.Now()
	r.items = append(r.items, *usage)
	return nil
}

func (r *fakePartUsageRepo) ListByIntervention(_ context.Context, interventionID string) ([]domain.PartUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PartUsage
	for _, usage := range r.items {
		if usage.InterventionID == interventionID {
			out = append(out, usage)
		}
	}
	return out, nil
}

type fakeTechnicianRepo struct {
	mu    sync.Mutex
	items map[string]domain.Technician
}

func newFakeTechnicianRepo(techs ...domain.Technician) *fakeTechnicianRepo {
	repo := &fakeTechnicianRepo{items: map[string]domain.Technician{}}
	for _, tech := range techs {
		repo.items[tech.ID] = tech
	}
	return repo
}

func (r *fakeTechnicianRepo) Create(_ context.Context, tech *domain.Technician) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tech.ID == "" {
		tech.ID = fmt.Sprintf("tech-%d", len(r.items)+1)
	}
	r.items[tech.ID] = *tech
	return nil
}

func (r *fakeTechnicianRepo) GetByID(_ context.Context, id string) (*domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tech, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := tech
	return &cp, nil
}

func (r *fakeTechnicianRepo) GetByEmail(_ context.Context, email string) (*domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tech := range r.items {
		if tech.Email == email {
			cp := tech
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTechnicianRepo) List(_ context.Context, filter repository.TechnicianFilter) ([]domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Technician
	for _, tech := range r.items {
		if filter.AvailableOnly && !tech.IsAvailable {
			continue
		}
		if filter.Specialty != nil && tech.Specialty != *filter.Specialty {
			continue
		}
		out = append(out, tech)
	}
	return out, nil
}

func (r *fakeTechnicianRepo) SetAvailability(_ context.Context, id string, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tech, ok := r.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	tech.IsAvailable = available
	r.items[id] = tech
	return nil
}

type stubComplaintClient struct {
	complaint       *external.Complaint
	lookupErr       error
	updateErr       error
	mu              sync.Mutex
	statusesApplied []string
}

func (c *stubComplaintClient) Lookup(context.Context, string) (*external.Complaint, error) {
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	cp := *c.complaint
	return &cp, nil
}

func (c *stubComplaintClient) UpdateStatus(_ context.Context, _ string, status string) error {
	if c.updateErr != nil {
		return c.updateErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusesApplied = append(c.statusesApplied, status)
	return nil
}

type stubWarrantyClient struct {
	underWarranty bool
	err           error
}

func (c *stubWarrantyClient) Check(context.Context, string) (bool, error) {
	return c.underWarranty, c.err
}

type stubCatalogClient struct {
	parts map[string]external.Part
	err   error
}

func (c *stubCatalogClient) LookupPart(_ context.Context, partID string) (*external.Part, error) {
	if c.err != nil {
		return nil, c.err
	}
	part, ok := c.parts[partID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := part
	return &cp, nil
}

type fakeSlotRepo struct {
	mu    sync.Mutex
	seq   int
	items map[string]domain.Slot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{items: map[string]domain.Slot{}}
}

func (r *fakeSlotRepo) Create(_ context.Context, slot *domain.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	slot.ID = "slot-" + strconv.Itoa(r.seq)
	slot.CreatedAt = time.Now()
	r.items[slot.ID] = *slot
	return nil
}

func (r *fakeSlotRepo) CreateIgnoreDuplicate(_ context.Context, slot *domain.Slot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TechnicianID == slot.TechnicianID &&
			existing.StartTime.Equal(slot.StartTime) &&
			existing.EndTime.Equal(slot.EndTime) {
			return false, nil
		}
	}
	r.seq++
	slot.ID = "slot-" + strconv.Itoa(r.seq)
	r.items[slot.ID] = *slot
	return true, nil
}

func (r *fakeSlotRepo) GetByID(_ context.Context, id string) (*domain.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := slot
	return &cp, nil
}

func (r *fakeSlotRepo) DeleteUnreserved(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if slot.IsReserved {
		return repository.ErrSlotReserved
	}
	delete(r.items, id)
	return nil
}

func (r *fakeSlotRepo) HasOverlap(_ context.Context, technicianID string, start, end time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, slot := range r.items {
		if slot.TechnicianID == technicianID && slot.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSlotRepo) ListByTechnicianRange(_ context.Context, technicianID string, from, to time.Time) ([]domain.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Slot
	for _, slot := range r.items {
		if slot.TechnicianID == technicianID && slot.Overlaps(from, to) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (r *fakeSlotRepo) Reserve(_ context.Context, id, interventionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if slot.IsReserved {
		return repository.ErrSlotAlreadyReserved
	}
	slot.IsReserved = true
	slot.InterventionID = &interventionID
	r.items[id] = slot
	return nil
}

func (r *fakeSlotRepo) Release(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	slot.IsReserved = false
	slot.InterventionID = nil
	r.items[id] = slot
	return nil
}

func (r *fakeSlotRepo) ListFree(_ context.Context, from, to time.Time, technicianID *string, _, _ int) ([]domain.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Slot
	for _, slot := range r.items {
		// Containment, not intersection: only slots lying fully inside
		// [from, to] count as bookable within the window.
		if slot.IsReserved || slot.StartTime.Before(from) || slot.EndTime.After(to) {
			continue
		}
		if technicianID != nil && slot.TechnicianID != *technicianID {
			continue
		}
		out = append(out, slot)
	}
	return out, nil
}

func (r *fakeSlotRepo) List(_ context.Context, _, _ int) ([]domain.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Slot
	for _, slot := range r.items {
		out = append(out, slot)
	}
	return out, nil
}

func (r *fakeSlotRepo) Counts(_ context.Context) (repository.SlotCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := repository.SlotCounts{}
	for _, slot := range r.items {
		counts.Total++
		if slot.IsReserved {
			counts.Reserved++
		} else {
			counts.Free++
		}
	}
	return counts, nil
}

// fakeRequestRepo mirrors the single-active-request semantics: a request is
// active while Pending, or while Confirmed with a bound slot that has not
// ended yet.
type fakeRequestRepo struct {
	mu        sync.Mutex
	seq       int
	items     map[string]domain.AppointmentRequest
	slots     *fakeSlotRepo
	updateErr error
}

func newFakeRequestRepo(slots *fakeSlotRepo) *fakeRequestRepo {
	return &fakeRequestRepo{items: map[string]domain.AppointmentRequest{}, slots: slots}
}

func (r *fakeRequestRepo) CreateIfNoActive(ctx context.Context, req *domain.AppointmentRequest, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.ClientID != req.ClientID {
			continue
		}
		if existing.Status == domain.AppointmentStatusPending {
			return repository.ErrActiveRequestExists
		}
		if existing.Status == domain.AppointmentStatusConfirmed && existing.SlotID != nil && r.slots != nil {
			if slot, err := r.slots.GetByID(ctx, *existing.SlotID); err == nil && slot.EndTime.After(now) {
				return repository.ErrActiveRequestExists
			}
		}
	}
	r.seq++
	req.ID = "req-" + strconv.Itoa(r.seq)
	req.CreatedAt = now
	r.items[req.ID] = *req
	return nil
}

func (r *fakeRequestRepo) GetByID(_ context.Context, id string) (*domain.AppointmentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := req
	return &cp, nil
}

func (r *fakeRequestRepo) Update(_ context.Context, req *domain.AppointmentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		err := r.updateErr
		r.updateErr = nil
		return err
	}
	if _, ok := r.items[req.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.items[req.ID] = *req
	return nil
}

func (r *fakeRequestRepo) ListWithFilter(_ context.Context, filter repository.AppointmentRequestFilter) ([]domain.AppointmentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AppointmentRequest
	for _, req := range r.items {
		if filter.ClientID != nil && req.ClientID != *filter.ClientID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, status := range filter.Statuses {
				if req.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, req)
	}
	return out, nil
}

type fakeEvaluationRepo struct {
	mu        sync.Mutex
	seq       int
	items     map[string]domain.Evaluation
	createErr error
}

func newFakeEvaluationRepo() *fakeEvaluationRepo {
	return &fakeEvaluationRepo{items: map[string]domain.Evaluation{}}
}

func (r *fakeEvaluationRepo) Create(_ context.Context, eval *domain.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	r.seq++
	eval.ID = "eval-" + strconv.Itoa(r.seq)
	eval.CreatedAt = time.Now()
	r.items[eval.InterventionID] = *eval
	return nil
}

func (r *fakeEvaluationRepo) GetByIntervention(_ context.Context, interventionID string) (*domain.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eval, ok := r.items[interventionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := eval
	return &cp, nil
}

func (r *fakeEvaluationRepo) ExistsForIntervention(_ context.Context, interventionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[interventionID]
	return ok, nil
}
