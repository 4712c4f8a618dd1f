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
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

type appointmentFixture struct {
	service    *AppointmentService
	slotSvc    *SlotService
	requests   *fakeRequestRepo
	slots      *fakeSlotRepo
	dispatcher *recordingDispatcher
}

func newAppointmentFixture() *appointmentFixture {
	f := &appointmentFixture{
		slots:      newFakeSlotRepo(),
		dispatcher: &recordingDispatcher{},
	}
	f.requests = newFakeRequestRepo(f.slots)
	f.slotSvc = NewSlotService(SlotDependencies{
		SlotRepo: f.slots,
		TechnicianRepo: newFakeTechnicianRepo(domain.Technician{
			ID: "tech-1", Name: "Nadia", IsAvailable: true,
		}),
		Logger: zap.NewNop(),
	})
	f.service = NewAppointmentService(AppointmentDependencies{
		RequestRepo: f.requests,
		SlotService: f.slotSvc,
		Dispatcher:  f.dispatcher,
		Logger:      zap.NewNop(),
	})
	return f
}

func (f *appointmentFixture) freeSlot(t *testing.T, start, end time.Time) *domain.Slot {
	t.Helper()
	slot, err := f.slotSvc.CreateSlot(context.Background(), staffActor, "tech-1", start, end)
	require.NoError(t, err)
	return slot
}

func requestInput(slotID *string) AppointmentCreateInput {
	return AppointmentCreateInput{
		SlotID:      slotID,
		DesiredDate: time.Now().Add(72 * time.Hour),
		Preference:  "morning",
		Motive:      "machine leaks",
	}
}

func TestCreateAppointmentRequest(t *testing.T) {
	t.Run("Submission does not reserve the slot", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, at(10, 0), at(10, 30))

		req, err := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))
		require.NoError(t, err)
		assert.Equal(t, domain.AppointmentStatusPending, req.Status)

		reloaded, err := f.slotSvc.GetSlot(context.Background(), slot.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.IsReserved)
	})

	t.Run("Second active request conflicts", func(t *testing.T) {
		f := newAppointmentFixture()
		_, err := f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))
		require.NoError(t, err)

		_, err = f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})

	t.Run("Confirmed request with a future slot still blocks new ones", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))

		req, err := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))
		require.NoError(t, err)
		_, err = f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: true, InterventionID: "iv-1"})
		require.NoError(t, err)

		_, err = f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})

	t.Run("Confirmed request whose slot has ended no longer blocks", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))

		req, err := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))
		require.NoError(t, err)
		_, err = f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: true, InterventionID: "iv-1"})
		require.NoError(t, err)

		_, err = f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))
		assert.NoError(t, err)
	})

	t.Run("Already reserved slot conflicts at submission", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, at(10, 0), at(10, 30))
		_, err := f.slotSvc.ReserveSlot(context.Background(), slot.ID, "iv-1")
		require.NoError(t, err)

		_, err = f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))
	})

	t.Run("Staff cannot file client requests", func(t *testing.T) {
		f := newAppointmentFixture()
		_, err := f.service.CreateRequest(context.Background(), staffActor, requestInput(nil))
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})
}

func TestTreatAppointmentRequest(t *testing.T) {
	t.Run("Accept reserves the slot and confirms", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, at(10, 0), at(10, 30))
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))

		treated, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{
			Accept:         true,
			InterventionID: "iv-1",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.AppointmentStatusConfirmed, treated.Status)
		require.NotNil(t, treated.ProcessedAt)

		reserved, err := f.slotSvc.GetSlot(context.Background(), slot.ID)
		require.NoError(t, err)
		assert.True(t, reserved.IsReserved)
		require.NotNil(t, reserved.InterventionID)
		assert.Equal(t, "iv-1", *reserved.InterventionID)

		published := f.dispatcher.published()
		require.Len(t, published, 1)
		assert.Equal(t, events.EventAppointmentStatusChanged, published[0].Type)
	})

	t.Run("Stale slot surfaces as conflict and leaves the request pending", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, at(10, 0), at(10, 30))
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))

		// Someone else grabbed the slot between submission and treatment.
		_, err := f.slotSvc.ReserveSlot(context.Background(), slot.ID, "iv-other")
		require.NoError(t, err)

		_, err = f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: true, InterventionID: "iv-1"})
		assert.True(t, apperrors.IsCode(err, "CONFLICT"))

		reloaded, err := f.service.Get(context.Background(), staffActor, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AppointmentStatusPending, reloaded.Status)
	})

	t.Run("Override slot wins over the requested one", func(t *testing.T) {
		f := newAppointmentFixture()
		requested := f.freeSlot(t, at(10, 0), at(10, 30))
		override := f.freeSlot(t, at(14, 0), at(14, 30))
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(&requested.ID))

		treated, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{
			Accept:         true,
			OverrideSlotID: &override.ID,
			InterventionID: "iv-1",
		})
		require.NoError(t, err)
		require.NotNil(t, treated.SlotID)
		assert.Equal(t, override.ID, *treated.SlotID)

		untouched, err := f.slotSvc.GetSlot(context.Background(), requested.ID)
		require.NoError(t, err)
		assert.False(t, untouched.IsReserved)
	})

	t.Run("Accept without any slot fails validation", func(t *testing.T) {
		f := newAppointmentFixture()
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))

		_, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: true, InterventionID: "iv-1"})
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("Accept requires an intervention to bind", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, at(10, 0), at(10, 30))
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))

		_, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: true})
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("Reject touches no slot", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, at(10, 0), at(10, 30))
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))

		treated, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: false, Comment: "no capacity"})
		require.NoError(t, err)
		assert.Equal(t, domain.AppointmentStatusRejected, treated.Status)

		reloaded, err := f.slotSvc.GetSlot(context.Background(), slot.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.IsReserved)
	})

	t.Run("Processed request cannot be treated again", func(t *testing.T) {
		f := newAppointmentFixture()
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))
		_, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: false})
		require.NoError(t, err)

		_, err = f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: false})
		assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
	})

	t.Run("Failed persistence releases the freshly reserved slot", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, at(10, 0), at(10, 30))
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))

		f.requests.updateErr = errors.New("connection reset")
		_, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: true, InterventionID: "iv-1"})
		require.Error(t, err)

		reloaded, err := f.slotSvc.GetSlot(context.Background(), slot.ID)
		require.NoError(t, err)
		assert.False(t, reloaded.IsReserved)

		pending, err := f.service.Get(context.Background(), staffActor, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AppointmentStatusPending, pending.Status)
	})

	t.Run("Clients cannot treat", func(t *testing.T) {
		f := newAppointmentFixture()
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))
		_, err := f.service.Treat(context.Background(), clientActor, req.ID, TreatInput{Accept: false})
		assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
	})
}

func TestCancelAppointmentRequest(t *testing.T) {
	t.Run("Cancelling a confirmed request releases its slot", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, at(10, 0), at(10, 30))
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))
		_, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: true, InterventionID: "iv-1"})
		require.NoError(t, err)

		cancelled, err := f.service.Cancel(context.Background(), clientActor, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AppointmentStatusCancelled, cancelled.Status)

		released, err := f.slotSvc.GetSlot(context.Background(), slot.ID)
		require.NoError(t, err)
		assert.False(t, released.IsReserved)
	})

	t.Run("Failed persistence keeps the slot reserved", func(t *testing.T) {
		f := newAppointmentFixture()
		slot := f.freeSlot(t, at(10, 0), at(10, 30))
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(&slot.ID))
		_, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: true, InterventionID: "iv-1"})
		require.NoError(t, err)

		f.requests.updateErr = errors.New("connection reset")
		_, err = f.service.Cancel(context.Background(), clientActor, req.ID)
		require.Error(t, err)

		reloaded, err := f.slotSvc.GetSlot(context.Background(), slot.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.IsReserved)

		confirmed, err := f.service.Get(context.Background(), staffActor, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AppointmentStatusConfirmed, confirmed.Status)
	})

	t.Run("Clients cannot cancel someone else's request", func(t *testing.T) {
		f := newAppointmentFixture()
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))

		stranger := domain.Actor{Role: domain.ActorRoleClient, ID: "client-2"}
		_, err := f.service.Cancel(context.Background(), stranger, req.ID)
		assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	})

	t.Run("Rejected request cannot be cancelled", func(t *testing.T) {
		f := newAppointmentFixture()
		req, _ := f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))
		_, err := f.service.Treat(context.Background(), staffActor, req.ID, TreatInput{Accept: false})
		require.NoError(t, err)

		_, err = f.service.Cancel(context.Background(), clientActor, req.ID)
		assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
	})
}

func TestListAppointmentRequests(t *testing.T) {
	f := newAppointmentFixture()
	_, err := f.service.CreateRequest(context.Background(), clientActor, requestInput(nil))
	require.NoError(t, err)
	other := domain.Actor{Role: domain.ActorRoleClient, ID: "client-2"}
	_, err = f.service.CreateRequest(context.Background(), other, requestInput(nil))
	require.NoError(t, err)

	mine, err := f.service.List(context.Background(), clientActor, repository.AppointmentRequestFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, clientActor.ID, mine[0].ClientID)

	all, err := f.service.List(context.Background(), staffActor, repository.AppointmentRequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
