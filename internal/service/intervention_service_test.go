package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/external"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

type interventionFixture struct {
	service     *InterventionService
	repo        *fakeInterventionRepo
	parts       *fakePartUsageRepo
	technicians *fakeTechnicianRepo
	complaints  *stubComplaintClient
	warranty    *stubWarrantyClient
	catalog     *stubCatalogClient
	dispatcher  *recordingDispatcher
}

func newInterventionFixture() *interventionFixture {
	f := &interventionFixture{
		repo:  newFakeInterventionRepo(),
		parts: &fakePartUsageRepo{},
		technicians: newFakeTechnicianRepo(domain.Technician{
			ID: "tech-1", Name: "Nadia", Email: "nadia@example.com", IsAvailable: true,
		}),
		complaints: &stubComplaintClient{complaint: &external.Complaint{
			ID: "cmp-1", ClientID: "client-1", PurchasedArticleID: "art-1", Status: "Open",
		}},
		warranty: &stubWarrantyClient{},
		catalog: &stubCatalogClient{parts: map[string]external.Part{
			"part-1": {ID: "part-1", Name: "Compressor", Reference: "CMP-900", PriceCents: 14900},
		}},
		dispatcher: &recordingDispatcher{},
	}
	f.service = NewInterventionService(InterventionDependencies{
		InterventionRepo: f.repo,
		PartUsageRepo:    f.parts,
		TechnicianRepo:   f.technicians,
		ComplaintClient:  f.complaints,
		WarrantyClient:   f.warranty,
		CatalogClient:    f.catalog,
		Dispatcher:       f.dispatcher,
		Logger:           zap.NewNop(),
	})
	return f
}

var (
	staffActor      = domain.Actor{Role: domain.ActorRoleStaff, ID: "staff-1"}
	clientActor     = domain.Actor{Role: domain.ActorRoleClient, ID: "client-1"}
	technicianActor = domain.Actor{Role: domain.ActorRoleTechnician, ID: "tech-1"}
)

func createInput() InterventionCreateInput {
	techID := "tech-1"
	return InterventionCreateInput{
		ComplaintID:   "cmp-1",
		TechnicianID:  &techID,
		ScheduledDate: time.Now().Add(48 * time.Hour),
	}
}

func TestInterventionCreate(t *testing.T) {
	t.Run("Resolves client and warranty from the complaint", func(t *testing.T) {
		f := newInterventionFixture()
		f.warranty.underWarranty = true

		iv, err := f.service.Create(context.Background(), staffActor, createInput())
		require.NoError(t, err)

		assert.Equal(t, "client-1", iv.ClientID)
		assert.Equal(t, domain.InterventionStatusPlanned, iv.Status)
		assert.True(t, iv.IsFree)
		assert.NotEmpty(t, iv.ReferenceKey)

		published := f.dispatcher.published()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventInterventionCreated, published[0].Type)
	})

	t.Run("Warranty flag is frozen at creation", func(t *testing.T) {
		f := newInterventionFixture()
		f.warranty.underWarranty = true
		iv, err := f.service.Create(context.Background(), staffActor, createInput())
		require.NoError(t, err)
		require.True(t, iv.IsFree)

		// A later contradicting warranty answer never rewrites the flag.
		f.warranty.underWarranty = false
		comment := "revisit"
		_, err = f.service.UpdateFields(context.Background(), staffActor, iv.ID, InterventionUpdateInput{Comment: &comment})
		require.NoError(t, err)

		reloaded, err := f.service.Get(context.Background(), iv.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.IsFree)
	})

	t.Run("Client role rejected", func(t *testing.T) {
		f := newInterventionFixture()
		_, err := f.service.Create(context.Background(), clientActor, createInput())
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("Complaint lookup failure aborts creation", func(t *testing.T) {
		f := newInterventionFixture()
		f.complaints.lookupErr = apperrors.NewExternalDependency("complaint service", errors.New("timeout"))

		_, err := f.service.Create(context.Background(), staffActor, createInput())
		assert.True(t, apperrors.IsCode(err, "EXTERNAL_DEPENDENCY"))
		assert.Empty(t, f.repo.items)
	})

	t.Run("Warranty check failure aborts creation", func(t *testing.T) {
		f := newInterventionFixture()
		f.warranty.err = apperrors.NewExternalDependency("warranty service", errors.New("boom"))

		_, err := f.service.Create(context.Background(), staffActor, createInput())
		assert.True(t, apperrors.IsCode(err, "EXTERNAL_DEPENDENCY"))
		assert.Empty(t, f.repo.items)
	})

	t.Run("Unknown technician rejected", func(t *testing.T) {
		f := newInterventionFixture()
		input := createInput()
		ghost := "tech-ghost"
		input.TechnicianID = &ghost

		_, err := f.service.Create(context.Background(), staffActor, input)
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})
}

func TestInterventionTransitions(t *testing.T) {
	t.Run("Planned to InProgress to Completed", func(t *testing.T) {
		f := newInterventionFixture()
		iv, err := f.service.Create(context.Background(), staffActor, createInput())
		require.NoError(t, err)

		iv, err = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionStart)
		require.NoError(t, err)
		assert.Equal(t, domain.InterventionStatusInProgress, iv.Status)

		iv, err = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionComplete)
		require.NoError(t, err)
		assert.Equal(t, domain.InterventionStatusCompleted, iv.Status)
		require.NotNil(t, iv.CompletedAt)
	})

	t.Run("Completed cannot go back to InProgress", func(t *testing.T) {
		f := newInterventionFixture()
		iv, _ := f.service.Create(context.Background(), staffActor, createInput())
		_, _ = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionStart)
		_, _ = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionComplete)

		_, err := f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionStart)
		assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
	})

	t.Run("Completion frees the technician and syncs the complaint", func(t *testing.T) {
		f := newInterventionFixture()
		require.NoError(t, f.technicians.SetAvailability(context.Background(), "tech-1", false))

		iv, _ := f.service.Create(context.Background(), staffActor, createInput())
		_, _ = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionStart)
		_, err := f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionComplete)
		require.NoError(t, err)

		tech, err := f.technicians.GetByID(context.Background(), "tech-1")
		require.NoError(t, err)
		assert.True(t, tech.IsAvailable)
		assert.Equal(t, []string{"Resolved"}, f.complaints.statusesApplied)
	})

	t.Run("Complaint sync failure does not revert completion", func(t *testing.T) {
		f := newInterventionFixture()
		f.complaints.updateErr = errors.New("complaint service down")

		iv, _ := f.service.Create(context.Background(), staffActor, createInput())
		_, _ = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionStart)
		iv, err := f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionComplete)
		require.NoError(t, err)
		assert.Equal(t, domain.InterventionStatusCompleted, iv.Status)
	})

	t.Run("Technician may start own intervention but never cancel", func(t *testing.T) {
		f := newInterventionFixture()
		iv, _ := f.service.Create(context.Background(), staffActor, createInput())

		started, err := f.service.TransitionStatusAsTechnician(context.Background(), technicianActor, iv.ID, domain.InterventionActionStart)
		require.NoError(t, err)
		assert.Equal(t, domain.InterventionStatusInProgress, started.Status)

		_, err = f.service.TransitionStatusAsTechnician(context.Background(), technicianActor, iv.ID, domain.InterventionActionCancel)
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})

	t.Run("Technician cannot act on someone else's intervention", func(t *testing.T) {
		f := newInterventionFixture()
		iv, _ := f.service.Create(context.Background(), staffActor, createInput())

		other := domain.Actor{Role: domain.ActorRoleTechnician, ID: "tech-2"}
		_, err := f.service.TransitionStatusAsTechnician(context.Background(), other, iv.ID, domain.InterventionActionStart)
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})

	t.Run("Delete cancels instead of removing", func(t *testing.T) {
		f := newInterventionFixture()
		iv, _ := f.service.Create(context.Background(), staffActor, createInput())

		cancelled, err := f.service.Delete(context.Background(), staffActor, iv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InterventionStatusCancelled, cancelled.Status)

		reloaded, err := f.service.Get(context.Background(), iv.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InterventionStatusCancelled, reloaded.Status)
	})
}

func TestAddPartUsage(t *testing.T) {
	t.Run("Snapshots the catalogue price", func(t *testing.T) {
		f := newInterventionFixture()
		iv, _ := f.service.Create(context.Background(), staffActor, createInput())

		usage, err := f.service.AddPartUsage(context.Background(), staffActor, iv.ID, "part-1", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(14900), usage.UnitPriceCents)
		assert.Equal(t, "Compressor", usage.PartName)

		// Catalogue price changes never touch the recorded line.
		f.catalog.parts["part-1"] = external.Part{ID: "part-1", Name: "Compressor", PriceCents: 19900}
		reloaded, err := f.service.Get(context.Background(), iv.ID)
		require.NoError(t, err)
		require.Len(t, reloaded.PartsUsed, 1)
		assert.Equal(t, int64(14900), reloaded.PartsUsed[0].UnitPriceCents)
	})

	t.Run("Quantity must be positive", func(t *testing.T) {
		f := newInterventionFixture()
		iv, _ := f.service.Create(context.Background(), staffActor, createInput())

		_, err := f.service.AddPartUsage(context.Background(), staffActor, iv.ID, "part-1", 0)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("Assigned technician may add parts", func(t *testing.T) {
		f := newInterventionFixture()
		iv, _ := f.service.Create(context.Background(), staffActor, createInput())

		_, err := f.service.AddPartUsage(context.Background(), technicianActor, iv.ID, "part-1", 1)
		assert.NoError(t, err)
	})

	t.Run("Unassigned technician gets not found", func(t *testing.T) {
		f := newInterventionFixture()
		iv, _ := f.service.Create(context.Background(), staffActor, createInput())

		other := domain.Actor{Role: domain.ActorRoleTechnician, ID: "tech-2"}
		_, err := f.service.AddPartUsage(context.Background(), other, iv.ID, "part-1", 1)
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})

	t.Run("Accepted in any lifecycle state", func(t *testing.T) {
		f := newInterventionFixture()
		iv, _ := f.service.Create(context.Background(), staffActor, createInput())
		_, _ = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionStart)
		_, _ = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionComplete)

		_, err := f.service.AddPartUsage(context.Background(), staffActor, iv.ID, "part-1", 1)
		assert.NoError(t, err)
	})
}

func TestInvoiceSummary(t *testing.T) {
	f := newInterventionFixture()
	input := createInput()
	laborCents := int64(5000)
	input.LaborCents = &laborCents
	iv, err := f.service.Create(context.Background(), staffActor, input)
	require.NoError(t, err)

	_, err = f.service.AddPartUsage(context.Background(), staffActor, iv.ID, "part-1", 2)
	require.NoError(t, err)

	summary, invoiceable, err := f.service.InvoiceSummary(context.Background(), iv.ID)
	require.NoError(t, err)
	assert.False(t, invoiceable, "only completed interventions are invoiceable")
	assert.Equal(t, int64(2*14900+5000), summary.TotalCents)

	_, _ = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionStart)
	_, _ = f.service.TransitionStatus(context.Background(), staffActor, iv.ID, domain.InterventionActionComplete)

	_, invoiceable, err = f.service.InvoiceSummary(context.Background(), iv.ID)
	require.NoError(t, err)
	assert.True(t, invoiceable)
}
