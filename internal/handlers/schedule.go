package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healsync-portal/internal/logging"
	"healsync-portal/internal/models"
	"healsync-portal/internal/schedule"
	"healsync-portal/internal/utils"
)

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}

// ScheduleHandler lets doctors maintain their weekly availability.
type ScheduleHandler struct {
	schedules *schedule.Service
	logger    *logging.Logger
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(schedules *schedule.Service, logger *logging.Logger) *ScheduleHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ScheduleHandler{schedules: schedules, logger: logger}
}

// Page renders the signed in doctor's schedule editor.
func (h *ScheduleHandler) Page(c *gin.Context) {
	sess := currentSession(c)
	data := gin.H{"Weekdays": weekdays}
	windows, err := h.schedules.Get(c.Request.Context(), sess.UserID)
	if err != nil {
		h.logger.Error("failed to load schedule", "doctor_id", sess.UserID, "error", err)
		data["Notice"] = pageNotice(err)
	}
	data["Windows"] = windows
	render(c, http.StatusOK, "schedule.html", "Schedule", data)
}

// clockMinutes parses HH:MM into minutes after midnight. "24:00" is accepted as the end of day.
func clockMinutes(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("%q is not a valid time", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// windowsFromForm reads the editor rows. Rows without a weekday are ignored.
func windowsFromForm(c *gin.Context) ([]models.DoctorSchedule, error) {
	days := c.PostFormArray("weekday")
	starts := c.PostFormArray("start")
	ends := c.PostFormArray("end")
	slots := c.PostFormArray("slot")
	var out []models.DoctorSchedule
	for i, day := range days {
		if strings.TrimSpace(day) == "" {
			continue
		}
		if i >= len(starts) || i >= len(ends) {
			return nil, &schedule.ValidationError{Message: "Every day needs a start and end time"}
		}
		weekday, err := strconv.Atoi(day)
		if err != nil {
			return nil, &schedule.ValidationError{Message: "Invalid weekday"}
		}
		start, err := clockMinutes(starts[i])
		if err != nil {
			return nil, &schedule.ValidationError{Message: "Start time " + err.Error()}
		}
		end, err := clockMinutes(ends[i])
		if err != nil {
			return nil, &schedule.ValidationError{Message: "End time " + err.Error()}
		}
		w := models.DoctorSchedule{Weekday: time.Weekday(weekday), StartMinute: start, EndMinute: end}
		if i < len(slots) && strings.TrimSpace(slots[i]) != "" {
			if w.SlotMinutes, err = strconv.Atoi(strings.TrimSpace(slots[i])); err != nil {
				return nil, &schedule.ValidationError{Message: "Slot length must be a number of minutes"}
			}
		}
		out = append(out, w)
	}
	return out, nil
}

// SaveForm handles the schedule editor post.
func (h *ScheduleHandler) SaveForm(c *gin.Context) {
	sess := currentSession(c)
	windows, err := windowsFromForm(c)
	if err == nil {
		err = h.schedules.Save(c.Request.Context(), sess.UserID, windows)
	}
	if err != nil {
		redirectWithError(c, "/doctor/schedule", err)
		return
	}
	redirectWithNotice(c, "/doctor/schedule", utils.NoticeSuccess, "Schedule saved")
}

// GetSchedule returns a doctor's weekly windows.
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	windows, err := h.schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, "Schedule fetched successfully", windows)
}

// SaveSchedule replaces the signed in doctor's windows.
func (h *ScheduleHandler) SaveSchedule(c *gin.Context) {
	var windows []models.DoctorSchedule
	if err := c.ShouldBindJSON(&windows); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	sess := currentSession(c)
	if err := h.schedules.Save(c.Request.Context(), sess.UserID, windows); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, "Schedule saved successfully", windows)
}
