package models

import (
	"strings"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

// DefaultAppointmentLength is assumed when the backend omits an end time.
const DefaultAppointmentLength = 30 * time.Minute

// ParseStatus maps the status spellings seen from the backend onto the lifecycle states.
func ParseStatus(value string) (AppointmentStatus, bool) {
	normalized := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case "booked", "scheduled", "pending", "rescheduled":
		return StatusBooked, true
	case "confirmed":
		return StatusConfirmed, true
	case "completed", "done":
		return StatusCompleted, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	case "no-show", "noshow", "missed":
		return StatusNoShow, true
	}
	return "", false
}

// Appointment represents a scheduled appointment as returned by the backend
type Appointment struct {
	ID           string            `json:"id"`
	PatientID    string            `json:"patientId"`
	DoctorID     string            `json:"doctorId"`
	PatientName  string            `json:"patientName,omitempty"`
	DoctorName   string            `json:"doctorName,omitempty"`
	StartTime    time.Time         `json:"startTime"`
	EndTime      time.Time         `json:"endTime"`
	Status       AppointmentStatus `json:"status"`
	Reason       string            `json:"reason,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Prescription string            `json:"prescription,omitempty"`
	// Local marks a booking kept only in the portal cache because the API was unreachable.
	Local bool `json:"local,omitempty"`
}

// End returns the end instant, defaulting to a fixed length after the start.
func (a Appointment) End() time.Time {
	if a.EndTime.IsZero() || !a.EndTime.After(a.StartTime) {
		return a.StartTime.Add(DefaultAppointmentLength)
	}
	return a.EndTime
}

// Upcoming reports whether the appointment has not started yet.
func (a Appointment) Upcoming(now time.Time) bool {
	return a.StartTime.After(now)
}

func (a *Appointment) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	a.ID = f.str("id", "_id", "appointmentId")
	a.PatientID = f.str("patientId", "patient_id", "patient.id", "patient._id", "patient")
	a.DoctorID = f.str("doctorId", "doctor_id", "doctor.id", "doctor._id", "doctor")
	a.PatientName = f.str("patientName", "patient_name", "patient.name")
	a.DoctorName = f.str("doctorName", "doctor_name", "doctor.name")
	a.StartTime = f.time("startTime", "start_time", "start", "dateTime", "appointmentDateTime")
	if a.StartTime.IsZero() {
		if t, ok := CombineDateClock(dateOnly(f.str("appointmentDate", "date")), f.str("appointmentTime", "time", "timeSlot", "slot")); ok {
			a.StartTime = t
		}
	}
	a.EndTime = f.time("endTime", "end_time", "end")
	// A missing status is a fresh booking. An unknown one is kept as sent so
	// no lifecycle action applies to it.
	rawStatus := strings.TrimSpace(f.str("status", "appointmentStatus"))
	if status, ok := ParseStatus(rawStatus); ok {
		a.Status = status
	} else if rawStatus == "" {
		a.Status = StatusBooked
	} else {
		a.Status = AppointmentStatus(strings.ToLower(rawStatus))
	}
	a.Reason = f.str("reason", "purpose", "symptoms")
	a.Notes = f.str("notes", "note", "remarks")
	a.Prescription = f.str("prescription")
	a.Local = f.boolean("local")
	return nil
}

// dateOnly trims an ISO timestamp down to its date part.
func dateOnly(value string) string {
	if len(value) >= 10 {
		return value[:10]
	}
	return value
}
