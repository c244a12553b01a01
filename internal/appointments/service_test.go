package appointments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healsync-portal/internal/backend"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/metrics"
	"healsync-portal/internal/models"
	"healsync-portal/internal/store"
)

type fakeAPI struct {
	list       []models.Appointment
	listErr    error
	listCalls  int
	createErr  error
	created    []backend.NewAppointment
	statusErr  error
	statusSent []models.AppointmentStatus
	reschedErr error
}

func (f *fakeAPI) ListAppointments(_ context.Context, _ string, _ models.Role, _ string) ([]models.Appointment, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Appointment, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *fakeAPI) CreateAppointment(_ context.Context, _ string, req backend.NewAppointment) (*models.Appointment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &models.Appointment{ID: fmt.Sprintf("new-%d", len(f.created)), PatientID: req.PatientID, DoctorID: req.DoctorID, StartTime: req.StartTime, EndTime: req.EndTime, Status: models.StatusBooked}, nil
}

func (f *fakeAPI) UpdateAppointmentStatus(_ context.Context, _, _ string, status models.AppointmentStatus, _ string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusSent = append(f.statusSent, status)
	return nil
}

func (f *fakeAPI) RescheduleAppointment(_ context.Context, _, _ string, _, _ time.Time) error {
	return f.reschedErr
}

func newService(api *fakeAPI) (*Service, *metrics.PortalMetrics) {
	m := metrics.NewPortalMetrics(prometheus.NewRegistry())
	svc := NewService(api, store.NewMemoryStore(), logging.NewWithWriter("error", io.Discard), m).
		WithClock(func() time.Time { return now })
	return svc, m
}

var (
	patient = &models.Session{Role: models.RolePatient, UserID: "p-1", Token: "tok"}
	doctor  = &models.Session{Role: models.RoleDoctor, UserID: "d-1", Token: "tok"}
)

func TestBookRejectsPastDate(t *testing.T) {
	api := &fakeAPI{}
	svc, _ := newService(api)

	_, err := svc.Book(context.Background(), patient, BookingRequest{DoctorID: "d-1", Date: "2026-10-13", Time: "10:00"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "past")

	_, err = svc.Book(context.Background(), patient, BookingRequest{DoctorID: "d-1", Date: "2026-10-14", Time: "09:00"})
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, api.created)
}

func TestBookRejectsMissingDoctorAndDoctorRole(t *testing.T) {
	svc, _ := newService(&fakeAPI{})
	var verr *ValidationError
	_, err := svc.Book(context.Background(), patient, BookingRequest{Date: "2026-10-20", Time: "10:00"})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Book(context.Background(), doctor, BookingRequest{DoctorID: "d-1", Date: "2026-10-20", Time: "10:00"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestBookCreatesAndCaches(t *testing.T) {
	api := &fakeAPI{list: []models.Appointment{appt(models.StatusConfirmed, now.Add(72*time.Hour))}}
	svc, _ := newService(api)
	ctx := context.Background()

	_, err := svc.List(ctx, patient, false)
	require.NoError(t, err)

	created, err := svc.Book(ctx, patient, BookingRequest{DoctorID: "d-2", Date: "2026-10-15", Time: "14:30"})
	require.NoError(t, err)
	assert.False(t, created.Local)
	require.Len(t, api.created, 1)
	assert.Equal(t, "p-1", api.created[0].PatientID)
	assert.Equal(t, time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC), api.created[0].StartTime)

	list, err := svc.List(ctx, patient, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, created.ID, list[0].ID, "sorted by start time")
	assert.Equal(t, 1, api.listCalls, "served from cache")
}

func TestBookFallsBackLocallyWhenUnreachable(t *testing.T) {
	api := &fakeAPI{createErr: fmt.Errorf("%w: appointments.create", backend.ErrUnavailable)}
	svc, m := newService(api)
	ctx := context.Background()

	created, err := svc.Book(ctx, patient, BookingRequest{DoctorID: "d-2", DoctorName: "Dr. Cuddy", Date: "2026-10-15", Time: "14:30"})
	require.NoError(t, err)
	assert.True(t, created.Local)
	assert.Equal(t, models.StatusBooked, created.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackCounter("booking")))

	// The local booking survives a refresh from the API.
	list, err := svc.List(ctx, patient, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestConcurrentLocalBookingsAreAllKept(t *testing.T) {
	api := &fakeAPI{createErr: backend.ErrUnavailable}
	svc, _ := newService(api)
	ctx := context.Background()

	const bookings = 20
	var wg sync.WaitGroup
	for i := 0; i < bookings; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Book(ctx, patient, BookingRequest{DoctorID: "d-2", Date: "2026-10-15", Time: fmt.Sprintf("%02d:%02d", 9+i/2, (i%2)*30)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := svc.List(ctx, patient, true)
	require.NoError(t, err)
	assert.Len(t, list, bookings)
}

func TestBookDoesNotFallBackOnStatusError(t *testing.T) {
	api := &fakeAPI{createErr: &backend.StatusError{Operation: "appointments.create", Code: 409, Message: "Slot taken"}}
	svc, _ := newService(api)

	_, err := svc.Book(context.Background(), patient, BookingRequest{DoctorID: "d-2", Date: "2026-10-15", Time: "14:30"})
	require.Error(t, err)
	assert.Equal(t, 409, backend.StatusCode(err))

	svc.WithFallback(false)
	api.createErr = backend.ErrTimeout
	_, err = svc.Book(context.Background(), patient, BookingRequest{DoctorID: "d-2", Date: "2026-10-15", Time: "14:30"})
	assert.True(t, backend.IsTimeout(err))
}

func TestUpdateStatusMutatesCacheWithoutRefetch(t *testing.T) {
	api := &fakeAPI{list: []models.Appointment{appt(models.StatusConfirmed, now.Add(-time.Hour))}}
	svc, _ := newService(api)
	ctx := context.Background()

	updated, err := svc.UpdateStatus(ctx, doctor, "a1", ActionNoShow, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, updated.Status)
	assert.Equal(t, []models.AppointmentStatus{models.StatusNoShow}, api.statusSent)

	list, err := svc.List(ctx, doctor, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, list[0].Status)
	assert.Equal(t, 1, api.listCalls)
}

func TestUpdateStatusFailureLeavesCache(t *testing.T) {
	api := &fakeAPI{list: []models.Appointment{appt(models.StatusBooked, now.Add(time.Hour))}, statusErr: errors.New("boom")}
	svc, _ := newService(api)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, doctor, "a1", ActionConfirm, "")
	require.Error(t, err)

	list, err := svc.List(ctx, doctor, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBooked, list[0].Status)
}

func TestUpdateStatusGuards(t *testing.T) {
	api := &fakeAPI{list: []models.Appointment{appt(models.StatusBooked, now.Add(time.Hour))}}
	svc, _ := newService(api)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, patient, "a1", ActionConfirm, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateStatus(ctx, doctor, "a1", ActionComplete, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(ctx, doctor, "missing", ActionConfirm, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, api.statusSent)
}

func TestReschedule(t *testing.T) {
	api := &fakeAPI{list: []models.Appointment{appt(models.StatusConfirmed, now.Add(time.Hour))}}
	svc, _ := newService(api)
	ctx := context.Background()

	newStart := now.Add(24 * time.Hour)
	updated, err := svc.Reschedule(ctx, patient, "a1", newStart)
	require.NoError(t, err)
	assert.Equal(t, newStart, updated.StartTime)
	assert.Equal(t, newStart.Add(30*time.Minute), updated.EndTime)
	assert.Equal(t, models.StatusBooked, updated.Status)

	var verr *ValidationError
	_, err = svc.Reschedule(ctx, patient, "a1", now.Add(-time.Minute))
	assert.ErrorAs(t, err, &verr)
}

func TestListServesCacheWhenAPIFails(t *testing.T) {
	api := &fakeAPI{list: []models.Appointment{appt(models.StatusBooked, now.Add(time.Hour))}}
	svc, m := newService(api)
	ctx := context.Background()

	_, err := svc.List(ctx, patient, false)
	require.NoError(t, err)

	api.listErr = backend.ErrUnavailable
	list, err := svc.List(ctx, patient, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackCounter("appointments")))

	_, err = svc.List(ctx, doctor, true)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
}
