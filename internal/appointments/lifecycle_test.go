package appointments

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"healsync-portal/internal/models"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func appt(status models.AppointmentStatus, start time.Time) models.Appointment {
	return models.Appointment{ID: "a1", Status: status, StartTime: start, EndTime: start.Add(30 * time.Minute)}
}

func TestTransition(t *testing.T) {
	future := now.Add(2 * time.Hour)
	inProgress := now.Add(-10 * time.Minute)
	over := now.Add(-2 * time.Hour)

	tests := []struct {
		name   string
		appt   models.Appointment
		target models.AppointmentStatus
		ok     bool
	}{
		{"confirm future booking", appt(models.StatusBooked, future), models.StatusConfirmed, true},
		{"confirm in progress", appt(models.StatusBooked, inProgress), models.StatusConfirmed, true},
		{"confirm after end", appt(models.StatusBooked, over), models.StatusConfirmed, false},
		{"confirm twice", appt(models.StatusConfirmed, future), models.StatusConfirmed, false},
		{"complete before start", appt(models.StatusConfirmed, future), models.StatusCompleted, false},
		{"complete after start", appt(models.StatusConfirmed, inProgress), models.StatusCompleted, true},
		{"complete unconfirmed", appt(models.StatusBooked, inProgress), models.StatusCompleted, false},
		{"no-show before end", appt(models.StatusConfirmed, inProgress), models.StatusNoShow, false},
		{"no-show after end", appt(models.StatusConfirmed, over), models.StatusNoShow, true},
		{"cancel future booked", appt(models.StatusBooked, future), models.StatusCancelled, true},
		{"cancel future confirmed", appt(models.StatusConfirmed, future), models.StatusCancelled, true},
		{"cancel started", appt(models.StatusConfirmed, inProgress), models.StatusCancelled, false},
		{"cancel completed", appt(models.StatusCompleted, future), models.StatusCancelled, false},
		{"back to booked", appt(models.StatusConfirmed, future), models.StatusBooked, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(tt.appt, tt.target, now)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidTransition), "got %v", err)
		})
	}
}

func TestTransitionUsesDefaultLength(t *testing.T) {
	a := models.Appointment{Status: models.StatusConfirmed, StartTime: now.Add(-29 * time.Minute)}
	assert.Error(t, Transition(a, models.StatusNoShow, now))

	a.StartTime = now.Add(-31 * time.Minute)
	assert.NoError(t, Transition(a, models.StatusNoShow, now))
}

func TestAllowedActionsDoctor(t *testing.T) {
	// Confirmed with the end in the past: no-show, never confirm.
	actions := AllowedActions(appt(models.StatusConfirmed, now.Add(-time.Hour)), models.RoleDoctor, now)
	assert.Contains(t, actions, ActionNoShow)
	assert.Contains(t, actions, ActionComplete)
	assert.NotContains(t, actions, ActionConfirm)
	assert.NotContains(t, actions, ActionCancel)
	assert.NotContains(t, actions, ActionReschedule)

	actions = AllowedActions(appt(models.StatusBooked, now.Add(time.Hour)), models.RoleDoctor, now)
	assert.Equal(t, []Action{ActionConfirm, ActionCancel, ActionReschedule}, actions)
}

func TestAllowedActionsPatient(t *testing.T) {
	for _, status := range []models.AppointmentStatus{models.StatusBooked, models.StatusConfirmed} {
		actions := AllowedActions(appt(status, now.Add(time.Hour)), models.RolePatient, now)
		assert.Equal(t, []Action{ActionCancel, ActionReschedule}, actions, status)
	}

	for _, status := range []models.AppointmentStatus{models.StatusCompleted, models.StatusCancelled, models.StatusNoShow} {
		assert.Empty(t, AllowedActions(appt(status, now.Add(time.Hour)), models.RolePatient, now), status)
	}
	assert.Empty(t, AllowedActions(appt(models.StatusBooked, now.Add(-time.Minute)), models.RolePatient, now))
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("confirmed")
	assert.True(t, ok)
	assert.Equal(t, ActionConfirm, a)

	a, ok = ParseAction("no-show")
	assert.True(t, ok)
	assert.Equal(t, ActionNoShow, a)

	_, ok = ParseAction("delete")
	assert.False(t, ok)
	assert.Equal(t, "Mark No-Show", ActionNoShow.Label())
}

func TestSummarizeAndPartition(t *testing.T) {
	list := []models.Appointment{
		appt(models.StatusBooked, now.Add(time.Hour)),
		appt(models.StatusConfirmed, now.Add(48*time.Hour)),
		appt(models.StatusCompleted, now.Add(-time.Hour)),
		appt(models.StatusCancelled, now.Add(time.Hour)),
		appt(models.StatusNoShow, now.Add(-3*time.Hour)),
	}
	st := Summarize(list, now)
	assert.Equal(t, Stats{Total: 5, Booked: 1, Confirmed: 1, Completed: 1, Cancelled: 1, NoShow: 1, Today: 1, Upcoming: 2}, st)

	upcoming, past := Partition(list, now)
	assert.Len(t, upcoming, 2)
	assert.Len(t, past, 3)
}

func TestAllowedActionsUnknownStatus(t *testing.T) {
	a := appt(models.AppointmentStatus("on hold"), now.Add(2*time.Hour))
	for _, role := range []models.Role{models.RolePatient, models.RoleDoctor, models.RoleAdmin} {
		assert.Empty(t, AllowedActions(a, role, now), string(role))
	}
}
