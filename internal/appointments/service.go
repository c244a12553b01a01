package appointments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"healsync-portal/internal/backend"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/metrics"
	"healsync-portal/internal/models"
	"healsync-portal/internal/store"
)

const (
	cachePrefix = "healsync_appointments:"
	localPrefix = "healsync_local_appointments:"
	cacheTTL    = 15 * time.Minute
)

var (
	// ErrNotFound means the appointment is not in the user's list.
	ErrNotFound = errors.New("appointments: appointment not found")
	// ErrForbidden means the role may not perform the action.
	ErrForbidden = errors.New("appointments: action not permitted for role")
)

// ValidationError is a user-facing rejection of a request before any API call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// API is the subset of the backend client the service needs.
type API interface {
	ListAppointments(ctx context.Context, token string, role models.Role, userID string) ([]models.Appointment, error)
	CreateAppointment(ctx context.Context, token string, req backend.NewAppointment) (*models.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, token, id string, status models.AppointmentStatus, notes string) error
	RescheduleAppointment(ctx context.Context, token, id string, start, end time.Time) error
}

// Service reads and mutates a user's appointment list, keeping a cached copy
// that is updated in place after successful API calls.
type Service struct {
	api      API
	store    store.Store
	logger   *logging.Logger
	metrics  *metrics.PortalMetrics
	fallback bool
	now      func() time.Time
	// locks serializes read-modify-write per cache key.
	locks sync.Map
}

// NewService creates a Service. Local booking fallback is enabled by default.
func NewService(api API, st store.Store, logger *logging.Logger, m *metrics.PortalMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{api: api, store: st, logger: logger, metrics: m, fallback: true, now: time.Now}
}

// WithFallback toggles storing bookings locally when the API is unreachable.
func (s *Service) WithFallback(enabled bool) *Service {
	s.fallback = enabled
	return s
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func cacheKey(userID string) string {
	return cachePrefix + userID
}

func localKey(userID string) string {
	return localPrefix + userID
}

// List returns the session user's appointments sorted by start time.
// The cached copy is used unless refresh is set; when the API fails the
// cached copy, if any, is served instead. Bookings kept locally while the
// API was unreachable are always included.
func (s *Service) List(ctx context.Context, sess *models.Session, refresh bool) ([]models.Appointment, error) {
	locals := s.load(ctx, localKey(sess.UserID))

	var cached []models.Appointment
	cacheErr := store.GetJSON(ctx, s.store, cacheKey(sess.UserID), &cached)
	if cacheErr == nil && !refresh {
		return merge(cached, locals), nil
	}

	remote, err := s.api.ListAppointments(ctx, sess.Token, sess.Role, sess.UserID)
	if err != nil {
		if cacheErr == nil || len(locals) > 0 {
			s.logger.Warn("serving cached appointments", "user_id", sess.UserID, "error", err)
			s.metrics.ObserveFallback("appointments")
			return merge(cached, locals), nil
		}
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	sortByStart(remote)
	s.save(ctx, cacheKey(sess.UserID), remote, cacheTTL)
	return merge(remote, locals), nil
}

// Get returns one appointment from the user's list.
func (s *Service) Get(ctx context.Context, sess *models.Session, id string) (*models.Appointment, error) {
	list, err := s.List(ctx, sess, false)
	if err != nil {
		return nil, err
	}
	if i := indexOf(list, id); i >= 0 {
		return &list[i], nil
	}
	return nil, ErrNotFound
}

// BookingRequest is the booking form.
type BookingRequest struct {
	DoctorID   string `json:"doctorId" form:"doctorId" binding:"required"`
	DoctorName string `json:"doctorName" form:"doctorName"`
	PatientID  string `json:"patientId" form:"patientId"`
	Date       string `json:"date" form:"date" binding:"required"`
	Time       string `json:"time" form:"time" binding:"required"`
	Reason     string `json:"reason" form:"reason"`
	Notes      string `json:"notes" form:"notes"`
}

// Book validates the request and creates the appointment. A slot on a date
// before today, or a start that has already passed, is rejected.
func (s *Service) Book(ctx context.Context, sess *models.Session, req BookingRequest) (*models.Appointment, error) {
	now := s.now().UTC()
	if strings.TrimSpace(req.DoctorID) == "" {
		return nil, &ValidationError{Message: "Please select a doctor"}
	}
	patientID := req.PatientID
	switch sess.Role {
	case models.RolePatient:
		patientID = sess.UserID
	case models.RoleAdmin:
		if patientID == "" {
			return nil, &ValidationError{Message: "Please select a patient"}
		}
	default:
		return nil, ErrForbidden
	}

	day, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		return nil, &ValidationError{Message: "Please select a valid date"}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(today) {
		return nil, &ValidationError{Message: "Cannot book an appointment in the past. Please select a future date"}
	}
	start, ok := models.CombineDateClock(req.Date, req.Time)
	if !ok {
		return nil, &ValidationError{Message: "Please select a valid time slot"}
	}
	if !start.After(now) {
		return nil, &ValidationError{Message: "The selected time slot has already passed"}
	}

	create := backend.NewAppointment{
		PatientID: patientID,
		DoctorID:  req.DoctorID,
		StartTime: start,
		EndTime:   start.Add(models.DefaultAppointmentLength),
		Reason:    req.Reason,
		Notes:     req.Notes,
	}
	created, err := s.api.CreateAppointment(ctx, sess.Token, create)
	if err != nil {
		if !s.fallback || !reachabilityFailure(err) {
			return nil, fmt.Errorf("appointments: book: %w", err)
		}
		created = &models.Appointment{
			ID:         "local-" + uuid.NewString(),
			PatientID:  patientID,
			DoctorID:   req.DoctorID,
			DoctorName: req.DoctorName,
			StartTime:  start,
			EndTime:    create.EndTime,
			Status:     models.StatusBooked,
			Reason:     req.Reason,
			Notes:      req.Notes,
			Local:      true,
		}
		s.logger.Warn("backend unreachable, storing booking locally", "user_id", sess.UserID, "appointment_id", created.ID, "error", err)
		s.metrics.ObserveFallback("booking")
	}
	if created.ID == "" {
		created.ID = "pending-" + uuid.NewString()
	}
	if created.StartTime.IsZero() {
		created.StartTime, created.EndTime = create.StartTime, create.EndTime
	}
	if created.DoctorName == "" {
		created.DoctorName = req.DoctorName
	}

	key := cacheKey(sess.UserID)
	if created.Local {
		key = localKey(sess.UserID)
	}
	s.mutate(ctx, key, created.Local, func(list []models.Appointment) []models.Appointment {
		return append(list, *created)
	})
	return created, nil
}

// UpdateStatus applies a lifecycle transition through the API, then updates
// the cached list in place. On API failure the cache is left untouched.
func (s *Service) UpdateStatus(ctx context.Context, sess *models.Session, id string, action Action, notes string) (*models.Appointment, error) {
	target, ok := action.Target()
	if !ok {
		return nil, fmt.Errorf("appointments: %q is not a status change", action)
	}
	if !Permitted(sess.Role, action) {
		return nil, ErrForbidden
	}
	appt, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := Transition(*appt, target, s.now()); err != nil {
		return nil, err
	}

	if !appt.Local {
		if err := s.api.UpdateAppointmentStatus(ctx, sess.Token, id, target, notes); err != nil {
			return nil, fmt.Errorf("appointments: update status: %w", err)
		}
	}

	updated := *appt
	updated.Status = target
	if notes != "" {
		updated.Notes = notes
	}
	s.replace(ctx, sess, updated)
	s.logger.Info("appointment status updated", "appointment_id", id, "status", target, "by", sess.UserID)
	return &updated, nil
}

// Reschedule moves an open, future appointment to newStart, keeping its length.
func (s *Service) Reschedule(ctx context.Context, sess *models.Session, id string, newStart time.Time) (*models.Appointment, error) {
	if !Permitted(sess.Role, ActionReschedule) {
		return nil, ErrForbidden
	}
	appt, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !CanReschedule(*appt, now) {
		return nil, &TransitionError{From: appt.Status, To: models.StatusBooked, Reason: "only upcoming open appointments can be rescheduled"}
	}
	if !newStart.After(now) {
		return nil, &ValidationError{Message: "Please choose a new time in the future"}
	}
	newEnd := newStart.Add(appt.End().Sub(appt.StartTime))

	if !appt.Local {
		if err := s.api.RescheduleAppointment(ctx, sess.Token, id, newStart, newEnd); err != nil {
			return nil, fmt.Errorf("appointments: reschedule: %w", err)
		}
	}

	updated := *appt
	updated.StartTime = newStart
	updated.EndTime = newEnd
	updated.Status = models.StatusBooked
	s.replace(ctx, sess, updated)
	return &updated, nil
}

func (s *Service) replace(ctx context.Context, sess *models.Session, updated models.Appointment) {
	key := cacheKey(sess.UserID)
	if updated.Local {
		key = localKey(sess.UserID)
	}
	s.mutate(ctx, key, false, func(list []models.Appointment) []models.Appointment {
		if i := indexOf(list, updated.ID); i >= 0 {
			list[i] = updated
		}
		return list
	})
}

// mutate rewrites the list stored under key. A missing list is only created
// when create is set, so a partial list never shadows the remote one.
func (s *Service) mutate(ctx context.Context, key string, create bool, fn func([]models.Appointment) []models.Appointment) {
	mu, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	var list []models.Appointment
	if err := store.GetJSON(ctx, s.store, key, &list); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("appointment cache unreadable", "key", key, "error", err)
		}
		if !create {
			return
		}
	}
	list = fn(list)
	sortByStart(list)
	ttl := cacheTTL
	if strings.HasPrefix(key, localPrefix) {
		ttl = 0
	}
	s.save(ctx, key, list, ttl)
}

func (s *Service) load(ctx context.Context, key string) []models.Appointment {
	var list []models.Appointment
	if err := store.GetJSON(ctx, s.store, key, &list); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("appointment cache unreadable", "key", key, "error", err)
	}
	return list
}

func (s *Service) save(ctx context.Context, key string, list []models.Appointment, ttl time.Duration) {
	if err := store.SetJSON(ctx, s.store, key, list, ttl); err != nil {
		s.logger.Warn("failed to cache appointments", "key", key, "error", err)
	}
}

// merge returns remote plus any local bookings it does not already contain.
func merge(remote, locals []models.Appointment) []models.Appointment {
	out := make([]models.Appointment, 0, len(remote)+len(locals))
	out = append(out, remote...)
	for _, a := range locals {
		if indexOf(remote, a.ID) < 0 {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out
}

// reachabilityFailure is true for timeouts and network errors, not HTTP statuses.
func reachabilityFailure(err error) bool {
	return backend.IsTimeout(err) || errors.Is(err, backend.ErrUnavailable)
}

func indexOf(list []models.Appointment, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func sortByStart(list []models.Appointment) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartTime.Before(list[j].StartTime) })
}
