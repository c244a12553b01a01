package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"healsync-portal/internal/appointments"
	"healsync-portal/internal/directory"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/models"
	"healsync-portal/internal/treatment"
	"healsync-portal/internal/utils"
)

// EmergencyLister is the part of the backend client the patient dashboard uses.
type EmergencyLister interface {
	ListEmergencyServices(ctx context.Context, token string) ([]models.EmergencyService, error)
}

// AppointmentHandler serves the role dashboards and appointment lifecycle actions.
type AppointmentHandler struct {
	appointments *appointments.Service
	plans        *treatment.Service
	emergency    EmergencyLister
	doctors      *directory.Directory
	logger       *logging.Logger
	now          func() time.Time
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appts *appointments.Service, plans *treatment.Service, emergency EmergencyLister, doctors *directory.Directory, logger *logging.Logger) *AppointmentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentHandler{
		appointments: appts,
		plans:        plans,
		emergency:    emergency,
		doctors:      doctors,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the time source (tests).
func (h *AppointmentHandler) WithClock(now func() time.Time) *AppointmentHandler {
	h.now = now
	return h
}

// appointmentRow is one dashboard line with the actions offered for it.
type appointmentRow struct {
	Appointment models.Appointment
	Actions     []appointments.Action
	Chat        bool
}

// appointmentTable is the data of the "appointment_rows" template.
type appointmentTable struct {
	Role     models.Role
	Rows     []appointmentRow
	ReturnTo string
}

func (h *AppointmentHandler) table(sess *models.Session, list []models.Appointment, returnTo string, now time.Time) appointmentTable {
	t := appointmentTable{Role: sess.Role, ReturnTo: returnTo}
	for _, a := range list {
		t.Rows = append(t.Rows, appointmentRow{
			Appointment: a,
			Actions:     appointments.AllowedActions(a, sess.Role, now),
			Chat:        chatAvailable(a, sess.Role),
		})
	}
	return t
}

// chatAvailable reports whether the two participants can chat about a.
func chatAvailable(a models.Appointment, role models.Role) bool {
	if a.Local || role == models.RoleAdmin {
		return false
	}
	return a.Status != models.StatusCancelled && a.DoctorID != "" && a.PatientID != ""
}

// dashboard loads the session's appointments. A failure is returned as a page
// notice and the dashboard renders empty.
func (h *AppointmentHandler) dashboard(c *gin.Context, path string) (gin.H, []models.Appointment) {
	sess := currentSession(c)
	now := h.now()
	data := gin.H{}
	list, err := h.appointments.List(c.Request.Context(), sess, c.Query("refresh") != "")
	if err != nil {
		h.logger.Error("failed to load appointments", "user_id", sess.UserID, "error", err)
		data["Notice"] = pageNotice(err)
	}
	upcoming, past := appointments.Partition(list, now)
	data["Stats"] = appointments.Summarize(list, now)
	data["Upcoming"] = h.table(sess, upcoming, path, now)
	data["History"] = h.table(sess, past, path, now)
	return data, list
}

// PatientDashboard renders the patient home page.
func (h *AppointmentHandler) PatientDashboard(c *gin.Context) {
	sess := currentSession(c)
	ctx := c.Request.Context()
	data, _ := h.dashboard(c, "/patient")

	var active []models.TreatmentPlan
	if plans, err := h.plans.List(ctx, sess); err != nil {
		h.logger.Warn("treatment plans unavailable", "user_id", sess.UserID, "error", err)
	} else {
		for _, p := range plans {
			if treatment.Active(p, h.now()) {
				active = append(active, p)
			}
		}
	}
	data["Plans"] = active

	services, err := h.emergency.ListEmergencyServices(ctx, sess.Token)
	if err != nil {
		h.logger.Warn("emergency services unavailable", "error", err)
	}
	data["Emergency"] = services

	render(c, http.StatusOK, "patient.html", "Dashboard", data)
}

// DoctorDashboard renders the doctor home page.
func (h *AppointmentHandler) DoctorDashboard(c *gin.Context) {
	data, _ := h.dashboard(c, "/doctor")
	render(c, http.StatusOK, "doctor.html", "Dashboard", data)
}

// AdminDashboard renders every appointment and the doctor roster.
func (h *AppointmentHandler) AdminDashboard(c *gin.Context) {
	sess := currentSession(c)
	data, list := h.dashboard(c, "/admin")
	data["All"] = h.table(sess, list, "/admin", h.now())

	var doctors []models.Doctor
	if listing, err := h.doctors.List(c.Request.Context(), sess.Token, directory.Filter{}); err != nil {
		h.logger.Warn("doctor roster unavailable", "error", err)
	} else {
		doctors = listing.Doctors
	}
	data["Doctors"] = doctors
	render(c, http.StatusOK, "admin.html", "Administration", data)
}

// StatusRequest changes an appointment's status. Action accepts either an
// action name ("confirm") or the target status ("confirmed").
type StatusRequest struct {
	Action string `json:"action" form:"action" binding:"required"`
	Notes  string `json:"notes" form:"notes"`
}

// RescheduleRequest moves an appointment. StartTime wins over Date and Time.
type RescheduleRequest struct {
	StartTime string `json:"startTime" form:"startTime"`
	Date      string `json:"date" form:"date"`
	Time      string `json:"time" form:"time"`
}

func (r RescheduleRequest) start() (time.Time, bool) {
	if r.StartTime != "" {
		return models.ParseTime(r.StartTime)
	}
	if r.Date == "" || r.Time == "" {
		return time.Time{}, false
	}
	return models.CombineDateClock(r.Date, r.Time)
}

func (h *AppointmentHandler) updateStatus(c *gin.Context, req StatusRequest) (*models.Appointment, error) {
	action, ok := appointments.ParseAction(req.Action)
	if !ok || action == appointments.ActionReschedule {
		return nil, &appointments.ValidationError{Message: "Unknown appointment action"}
	}
	return h.appointments.UpdateStatus(c.Request.Context(), currentSession(c), c.Param("id"), action, req.Notes)
}

func (h *AppointmentHandler) reschedule(c *gin.Context, req RescheduleRequest) (*models.Appointment, error) {
	start, ok := req.start()
	if !ok {
		return nil, &appointments.ValidationError{Message: "Please choose a valid new date and time"}
	}
	return h.appointments.Reschedule(c.Request.Context(), currentSession(c), c.Param("id"), start)
}

// UpdateStatusForm handles the dashboard action buttons.
func (h *AppointmentHandler) UpdateStatusForm(c *gin.Context) {
	sess := currentSession(c)
	target := returnTarget(c, sess.Role)
	var req StatusRequest
	if err := utils.BindForm(c, &req); err != nil {
		redirectWithNotice(c, target, utils.NoticeError, err.Error())
		return
	}
	appt, err := h.updateStatus(c, req)
	if err != nil {
		h.logger.Warn("appointment status change refused", "appointment_id", c.Param("id"), "action", req.Action, "error", err)
		redirectWithError(c, target, err)
		return
	}
	redirectWithNotice(c, target, utils.NoticeSuccess, "Appointment "+string(appt.Status))
}

// RescheduleForm handles the dashboard reschedule form.
func (h *AppointmentHandler) RescheduleForm(c *gin.Context) {
	sess := currentSession(c)
	target := returnTarget(c, sess.Role)
	var req RescheduleRequest
	if err := c.ShouldBind(&req); err != nil {
		redirectWithNotice(c, target, utils.NoticeError, "Please choose a valid new date and time")
		return
	}
	appt, err := h.reschedule(c, req)
	if err != nil {
		redirectWithError(c, target, err)
		return
	}
	redirectWithNotice(c, target, utils.NoticeSuccess, "Appointment moved to "+appt.StartTime.UTC().Format("Jan 2, 15:04"))
}

// appointmentView is an appointment with the actions the caller may take.
type appointmentView struct {
	models.Appointment
	Actions []appointments.Action `json:"actions"`
}

// ListAppointments returns the caller's appointments and dashboard counters.
func (h *AppointmentHandler) ListAppointments(c *gin.Context) {
	sess := currentSession(c)
	list, err := h.appointments.List(c.Request.Context(), sess, c.Query("refresh") != "")
	if err != nil {
		respondError(c, err)
		return
	}
	now := h.now()
	views := make([]appointmentView, 0, len(list))
	for _, a := range list {
		views = append(views, appointmentView{Appointment: a, Actions: appointments.AllowedActions(a, sess.Role, now)})
	}
	utils.Success(c, "Appointments fetched successfully", gin.H{
		"appointments": views,
		"stats":        appointments.Summarize(list, now),
	})
}

// GetAppointment returns one appointment from the caller's list.
func (h *AppointmentHandler) GetAppointment(c *gin.Context) {
	sess := currentSession(c)
	appt, err := h.appointments.Get(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appointmentView{
		Appointment: *appt,
		Actions:     appointments.AllowedActions(*appt, sess.Role, h.now()),
	})
}

// UpdateStatus is the JSON status change.
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	appt, err := h.updateStatus(c, req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, "Appointment status updated successfully", appt)
}

// Reschedule is the JSON reschedule.
func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	var req RescheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	appt, err := h.reschedule(c, req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, "Appointment rescheduled successfully", appt)
}

// EmergencyServices returns the emergency contacts.
func (h *AppointmentHandler) EmergencyServices(c *gin.Context) {
	services, err := h.emergency.ListEmergencyServices(c.Request.Context(), currentSession(c).Token)
	if err != nil {
		respondError(c, err)
		return
	}
	if services == nil {
		services = []models.EmergencyService{}
	}
	utils.Success(c, "Emergency services fetched successfully", services)
}
