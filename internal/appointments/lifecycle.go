// Package appointments implements the appointment lifecycle and the cached,
// optimistically updated appointment lists shown on the dashboards.
package appointments

import (
	"errors"
	"fmt"
	"time"

	"healsync-portal/internal/models"
)

// Action is something a user can do to an appointment from the dashboard.
type Action string

const (
	ActionConfirm    Action = "confirm"
	ActionComplete   Action = "complete"
	ActionNoShow     Action = "no-show"
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
)

var actionLabels = map[Action]string{
	ActionConfirm:    "Confirm",
	ActionComplete:   "Mark Complete",
	ActionNoShow:     "Mark No-Show",
	ActionCancel:     "Cancel",
	ActionReschedule: "Reschedule",
}

// Label is the button caption.
func (a Action) Label() string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return string(a)
}

// Target is the status an action moves to. Reschedule has none.
func (a Action) Target() (models.AppointmentStatus, bool) {
	switch a {
	case ActionConfirm:
		return models.StatusConfirmed, true
	case ActionComplete:
		return models.StatusCompleted, true
	case ActionNoShow:
		return models.StatusNoShow, true
	case ActionCancel:
		return models.StatusCancelled, true
	}
	return "", false
}

// ParseAction accepts an action name or a target status name.
func ParseAction(value string) (Action, bool) {
	a := Action(value)
	if _, ok := actionLabels[a]; ok {
		return a, true
	}
	if status, ok := models.ParseStatus(value); ok {
		for _, candidate := range []Action{ActionConfirm, ActionComplete, ActionNoShow, ActionCancel} {
			if target, _ := candidate.Target(); target == status {
				return candidate, true
			}
		}
	}
	return "", false
}

// ErrInvalidTransition is wrapped by every *TransitionError.
var ErrInvalidTransition = errors.New("appointments: invalid status transition")

// TransitionError explains why a status change was refused.
type TransitionError struct {
	From   models.AppointmentStatus
	To     models.AppointmentStatus
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change appointment from %s to %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Transition reports whether appt may move to target at now.
//
//	booked    -> confirmed  before the end instant
//	confirmed -> completed  after the start instant
//	confirmed -> no-show    after the end instant
//	booked|confirmed -> cancelled while the start is in the future
func Transition(appt models.Appointment, target models.AppointmentStatus, now time.Time) error {
	refuse := func(reason string) error {
		return &TransitionError{From: appt.Status, To: target, Reason: reason}
	}
	switch target {
	case models.StatusConfirmed:
		if appt.Status != models.StatusBooked {
			return refuse("only booked appointments can be confirmed")
		}
		if !now.Before(appt.End()) {
			return refuse("the appointment has already ended")
		}
	case models.StatusCompleted:
		if appt.Status != models.StatusConfirmed {
			return refuse("only confirmed appointments can be completed")
		}
		if !now.After(appt.StartTime) {
			return refuse("the appointment has not started yet")
		}
	case models.StatusNoShow:
		if appt.Status != models.StatusConfirmed {
			return refuse("only confirmed appointments can be marked as no-show")
		}
		if !now.After(appt.End()) {
			return refuse("the appointment has not ended yet")
		}
	case models.StatusCancelled:
		if appt.Status != models.StatusBooked && appt.Status != models.StatusConfirmed {
			return refuse("the appointment is already closed")
		}
		if !appt.Upcoming(now) {
			return refuse("the appointment has already started")
		}
	default:
		return refuse("unsupported target status")
	}
	return nil
}

// CanReschedule reports whether the appointment is still open and in the future.
func CanReschedule(appt models.Appointment, now time.Time) bool {
	return (appt.Status == models.StatusBooked || appt.Status == models.StatusConfirmed) && appt.Upcoming(now)
}

// Permitted reports whether role may perform the action at all.
// Patients manage their own bookings only by cancelling or rescheduling.
func Permitted(role models.Role, action Action) bool {
	switch role {
	case models.RoleDoctor, models.RoleAdmin:
		return true
	case models.RolePatient:
		return action == ActionCancel || action == ActionReschedule
	}
	return false
}

// AllowedActions lists what the dashboard offers role for appt at now.
func AllowedActions(appt models.Appointment, role models.Role, now time.Time) []Action {
	var actions []Action
	for _, action := range []Action{ActionConfirm, ActionComplete, ActionNoShow, ActionCancel} {
		if !Permitted(role, action) {
			continue
		}
		target, _ := action.Target()
		if Transition(appt, target, now) == nil {
			actions = append(actions, action)
		}
	}
	if Permitted(role, ActionReschedule) && CanReschedule(appt, now) {
		actions = append(actions, ActionReschedule)
	}
	return actions
}
