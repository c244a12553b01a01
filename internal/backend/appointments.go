package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"healsync-portal/internal/models"
)

// NewAppointment is a booking request.
type NewAppointment struct {
	PatientID string    `json:"patientId"`
	DoctorID  string    `json:"doctorId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Reason    string    `json:"reason,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

// ListAppointments returns the appointments visible to a role/user pair.
// Admins see every appointment.
func (c *Client) ListAppointments(ctx context.Context, token string, role models.Role, userID string) ([]models.Appointment, error) {
	var path string
	switch role {
	case models.RolePatient:
		path = "/api/appointments/patient/" + url.PathEscape(userID)
	case models.RoleDoctor:
		path = "/api/appointments/doctor/" + url.PathEscape(userID)
	case models.RoleAdmin:
		path = "/api/appointments"
	default:
		return nil, fmt.Errorf("backend: list appointments: unsupported role %q", role)
	}
	body, err := c.do(ctx, call{op: "appointments.list", method: http.MethodGet, path: path, token: token})
	if err != nil {
		return nil, err
	}
	list, err := models.DecodeList[models.Appointment](body, "appointments")
	if err != nil {
		return nil, fmt.Errorf("backend: list appointments: decode response: %w", err)
	}
	return list, nil
}

// CreateAppointment books a slot.
func (c *Client) CreateAppointment(ctx context.Context, token string, req NewAppointment) (*models.Appointment, error) {
	body, err := c.do(ctx, call{op: "appointments.create", method: http.MethodPost, path: "/api/appointments", token: token, body: req})
	if err != nil {
		return nil, err
	}
	appt, err := models.DecodeOne[models.Appointment](body, "appointment")
	if err != nil {
		return nil, fmt.Errorf("backend: create appointment: decode response: %w", err)
	}
	return &appt, nil
}

// UpdateAppointmentStatus issues a lifecycle transition.
func (c *Client) UpdateAppointmentStatus(ctx context.Context, token, id string, status models.AppointmentStatus, notes string) error {
	_, err := c.do(ctx, call{
		op:     "appointments.status",
		method: http.MethodPut,
		path:   "/api/appointments/" + url.PathEscape(id) + "/status",
		token:  token,
		body:   map[string]string{"status": string(status), "notes": notes},
	})
	return err
}

// RescheduleAppointment moves an appointment to a new slot.
func (c *Client) RescheduleAppointment(ctx context.Context, token, id string, start, end time.Time) error {
	_, err := c.do(ctx, call{
		op:     "appointments.reschedule",
		method: http.MethodPut,
		path:   "/api/appointments/" + url.PathEscape(id) + "/reschedule",
		token:  token,
		body:   map[string]time.Time{"startTime": start, "endTime": end},
	})
	return err
}
