package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"healsync-portal/internal/appointments"
	"healsync-portal/internal/directory"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/models"
	"healsync-portal/internal/schedule"
	"healsync-portal/internal/utils"
)

const dateLayout = "2006-01-02"

// BookingHandler serves the doctor directory and appointment booking.
type BookingHandler struct {
	doctors      *directory.Directory
	schedules    *schedule.Service
	appointments *appointments.Service
	logger       *logging.Logger
	now          func() time.Time
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(doctors *directory.Directory, schedules *schedule.Service, appts *appointments.Service, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{doctors: doctors, schedules: schedules, appointments: appts, logger: logger, now: time.Now}
}

// WithClock overrides the time source (tests).
func (h *BookingHandler) WithClock(now func() time.Time) *BookingHandler {
	h.now = now
	return h
}

// DoctorsPage renders the filterable doctor directory.
func (h *BookingHandler) DoctorsPage(c *gin.Context) {
	sess := currentSession(c)
	var f directory.Filter
	_ = c.ShouldBindQuery(&f)
	data := gin.H{"Filter": f}
	listing, err := h.doctors.List(c.Request.Context(), sess.Token, f)
	if err != nil {
		data["Notice"] = pageNotice(err)
		listing = &directory.Listing{}
	}
	data["Listing"] = listing
	render(c, http.StatusOK, "doctors.html", "Doctors", data)
}

// ListDoctors returns the filtered directory.
func (h *BookingHandler) ListDoctors(c *gin.Context) {
	var f directory.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		utils.BadRequest(c, "Invalid filter: "+err.Error())
		return
	}
	listing, err := h.doctors.List(c.Request.Context(), currentSession(c).Token, f)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, "Doctors fetched successfully", listing)
}

// GetDoctor returns one doctor.
func (h *BookingHandler) GetDoctor(c *gin.Context) {
	doc, err := h.doctors.Find(c.Request.Context(), currentSession(c).Token, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, "Doctor fetched successfully", doc)
}

// booked returns the caller's open appointments with doctorID. The backend
// only exposes a doctor's full calendar to that doctor, so a patient's
// slots exclude their own bookings.
func (h *BookingHandler) booked(c *gin.Context, sess *models.Session, doctorID string) []models.Appointment {
	list, err := h.appointments.List(c.Request.Context(), sess, false)
	if err != nil {
		h.logger.Warn("appointments unavailable for slot lookup", "user_id", sess.UserID, "error", err)
		return nil
	}
	var out []models.Appointment
	for _, a := range list {
		if a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	return out
}

// slots computes the free slots for doctorID on the YYYY-MM-DD date.
func (h *BookingHandler) slots(c *gin.Context, sess *models.Session, doctorID, date string) ([]schedule.Slot, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, &schedule.ValidationError{Message: "Please select a valid date"}
	}
	return h.schedules.Slots(c.Request.Context(), doctorID, day, h.booked(c, sess, doctorID), h.now())
}

// Slots returns the free slots for a doctor on ?date=YYYY-MM-DD.
func (h *BookingHandler) Slots(c *gin.Context) {
	sess := currentSession(c)
	date := c.DefaultQuery("date", h.now().UTC().Format(dateLayout))
	slots, err := h.slots(c, sess, c.Param("id"), date)
	if err != nil {
		respondError(c, err)
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}
	utils.Success(c, "Slots fetched successfully", gin.H{"date": date, "slots": slots})
}

// BookPage renders the slot picker for ?doctorId on ?date.
func (h *BookingHandler) BookPage(c *gin.Context) {
	sess := currentSession(c)
	doc, err := h.doctors.Find(c.Request.Context(), sess.Token, c.Query("doctorId"))
	if err != nil {
		redirectWithError(c, "/doctors", err)
		return
	}
	today := h.now().UTC().Format(dateLayout)
	date := c.DefaultQuery("date", today)
	data := gin.H{"Doctor": doc, "Date": date, "Today": today}
	slots, err := h.slots(c, sess, doc.ID, date)
	if err != nil {
		data["Notice"] = pageNotice(err)
	}
	data["Slots"] = slots
	render(c, http.StatusOK, "book.html", "Book an appointment", data)
}

// Book handles the booking form.
func (h *BookingHandler) Book(c *gin.Context) {
	var req appointments.BookingRequest
	back := "/book?" + url.Values{"doctorId": {c.PostForm("doctorId")}, "date": {c.PostForm("date")}}.Encode()
	if err := utils.BindForm(c, &req); err != nil {
		redirectWithNotice(c, back, utils.NoticeError, err.Error())
		return
	}
	appt, err := h.appointments.Book(c.Request.Context(), currentSession(c), req)
	if err != nil {
		redirectWithError(c, back, err)
		return
	}
	message := "Appointment booked for " + appt.StartTime.UTC().Format("Jan 2, 15:04")
	if appt.Local {
		message = "HealSync is unreachable. Your booking was saved on this portal and will show as offline"
	}
	redirectWithNotice(c, "/patient", utils.NoticeSuccess, message)
}

// BookAPI is the JSON booking endpoint.
func (h *BookingHandler) BookAPI(c *gin.Context) {
	var req appointments.BookingRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	appt, err := h.appointments.Book(c.Request.Context(), currentSession(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Created(c, "Appointment booked successfully", appt)
}
