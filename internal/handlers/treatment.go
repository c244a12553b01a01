package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"healsync-portal/internal/appointments"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/models"
	"healsync-portal/internal/treatment"
	"healsync-portal/internal/utils"
)

// medicineRows is how many medicine lines the authoring form offers.
const medicineRows = 4

// TreatmentHandler serves treatment plans.
type TreatmentHandler struct {
	plans        *treatment.Service
	appointments *appointments.Service
	logger       *logging.Logger
}

// NewTreatmentHandler creates a new TreatmentHandler.
func NewTreatmentHandler(plans *treatment.Service, appts *appointments.Service, logger *logging.Logger) *TreatmentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TreatmentHandler{plans: plans, appointments: appts, logger: logger}
}

// patientOption is a patient the doctor can author a plan for.
type patientOption struct {
	ID   string
	Name string
}

// patients lists the distinct patients in the doctor's appointments.
func (h *TreatmentHandler) patients(c *gin.Context, sess *models.Session) []patientOption {
	list, err := h.appointments.List(c.Request.Context(), sess, false)
	if err != nil {
		h.logger.Warn("appointments unavailable for patient list", "user_id", sess.UserID, "error", err)
		return nil
	}
	seen := map[string]bool{}
	var out []patientOption
	for _, a := range list {
		if a.PatientID == "" || seen[a.PatientID] {
			continue
		}
		seen[a.PatientID] = true
		name := a.PatientName
		if name == "" {
			name = a.PatientID
		}
		out = append(out, patientOption{ID: a.PatientID, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}

// Page lists the session user's plans; doctors also get the authoring form.
func (h *TreatmentHandler) Page(c *gin.Context) {
	sess := currentSession(c)
	data := gin.H{}
	plans, err := h.plans.List(c.Request.Context(), sess)
	if err != nil {
		data["Notice"] = pageNotice(err)
	}
	data["Plans"] = plans
	if sess.Role == models.RoleDoctor {
		data["Patients"] = h.patients(c, sess)
		data["Catalogues"] = h.plans.Catalogues(c.Request.Context(), sess)
		data["MedicineSlots"] = make([]struct{}, medicineRows)
	}
	render(c, http.StatusOK, "treatment_plans.html", "Treatment plans", data)
}

// planFromForm collects the repeated medicine inputs; blank lines are skipped.
func planFromForm(c *gin.Context) treatment.PlanRequest {
	req := treatment.PlanRequest{
		PatientID: c.PostForm("patientId"),
		DiseaseID: c.PostForm("diseaseId"),
		Title:     c.PostForm("title"),
		Goals:     c.PostForm("goals"),
		StartDate: c.PostForm("startDate"),
		EndDate:   c.PostForm("endDate"),
	}
	names := c.PostFormArray("medicineName")
	dosages := c.PostFormArray("medicineDosage")
	timings := c.PostFormArray("medicineTiming")
	instructions := c.PostFormArray("medicineInstructions")
	at := func(values []string, i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}
	for i := range names {
		m := models.Medicine{Name: at(names, i), Dosage: at(dosages, i), Timing: at(timings, i), Instructions: at(instructions, i)}
		if m.Name == "" && m.Dosage == "" && m.Timing == "" {
			continue
		}
		req.Medicines = append(req.Medicines, m)
	}
	return req
}

// CreateForm handles the authoring form.
func (h *TreatmentHandler) CreateForm(c *gin.Context) {
	plan, err := h.plans.Create(c.Request.Context(), currentSession(c), planFromForm(c))
	if err != nil {
		redirectWithError(c, "/treatment-plans", err)
		return
	}
	redirectWithNotice(c, "/treatment-plans", utils.NoticeSuccess, "Treatment plan \""+plan.Title+"\" created")
}

// ListPlans returns the session user's plans.
func (h *TreatmentHandler) ListPlans(c *gin.Context) {
	plans, err := h.plans.List(c.Request.Context(), currentSession(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if plans == nil {
		plans = []models.TreatmentPlan{}
	}
	utils.Success(c, "Treatment plans fetched successfully", plans)
}

// CreatePlan is the JSON authoring endpoint.
func (h *TreatmentHandler) CreatePlan(c *gin.Context) {
	var req treatment.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	plan, err := h.plans.Create(c.Request.Context(), currentSession(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Created(c, "Treatment plan created successfully", plan)
}

// Catalogues returns the disease and medicine lookups.
func (h *TreatmentHandler) Catalogues(c *gin.Context) {
	utils.Success(c, "Catalogues fetched successfully", h.plans.Catalogues(c.Request.Context(), currentSession(c)))
}
