// Package treatment reads and authors treatment plans.
package treatment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"healsync-portal/internal/backend"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/models"
	"healsync-portal/internal/utils"
)

// ValidationError is a user-facing rejection of a plan before any API call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrForbidden is returned when a patient tries to author a plan.
var ErrForbidden = errors.New("treatment: only doctors can create treatment plans")

// API is the subset of the backend client treatment plans need.
type API interface {
	ListTreatmentPlans(ctx context.Context, token string, role models.Role, userID string) ([]models.TreatmentPlan, error)
	CreateTreatmentPlan(ctx context.Context, token string, plan backend.NewTreatmentPlan) (*models.TreatmentPlan, error)
	ListDiseases(ctx context.Context, token string) ([]models.Disease, error)
	ListMedicines(ctx context.Context, token string) ([]models.MedicineInfo, error)
}

// PlanRequest is the plan authoring form.
type PlanRequest struct {
	PatientID string            `json:"patientId" validate:"required"`
	DiseaseID string            `json:"diseaseId"`
	Title     string            `json:"title" validate:"required"`
	Goals     string            `json:"goals"`
	StartDate string            `json:"startDate" validate:"required"`
	EndDate   string            `json:"endDate" validate:"required"`
	Medicines []models.Medicine `json:"medicines" validate:"dive"`
}

type Service struct {
	api    API
	logger *logging.Logger
}

func NewService(api API, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{api: api, logger: logger}
}

// List returns the session user's plans, active first, newest start first.
func (s *Service) List(ctx context.Context, sess *models.Session) ([]models.TreatmentPlan, error) {
	plans, err := s.api.ListTreatmentPlans(ctx, sess.Token, sess.Role, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("treatment: list: %w", err)
	}
	sort.SliceStable(plans, func(i, j int) bool {
		ai, aj := plans[i].Status == models.PlanActive, plans[j].Status == models.PlanActive
		if ai != aj {
			return ai
		}
		return plans[i].StartDate.After(plans[j].StartDate)
	})
	return plans, nil
}

// Create validates req and stores the plan under the session doctor.
func (s *Service) Create(ctx context.Context, sess *models.Session, req PlanRequest) (*models.TreatmentPlan, error) {
	if sess.Role != models.RoleDoctor {
		return nil, ErrForbidden
	}
	plan, err := Validate(req)
	if err != nil {
		return nil, err
	}
	plan.DoctorID = sess.UserID

	created, err := s.api.CreateTreatmentPlan(ctx, sess.Token, plan)
	if err != nil {
		return nil, fmt.Errorf("treatment: create: %w", err)
	}
	s.logger.Info("treatment plan created", "plan_id", created.ID, "patient_id", plan.PatientID, "doctor_id", sess.UserID)
	return created, nil
}

// Validate checks the form: required fields, at least one complete
// medicine, and an end date that is not before the start date.
func Validate(req PlanRequest) (backend.NewTreatmentPlan, error) {
	var plan backend.NewTreatmentPlan
	if len(req.Medicines) == 0 {
		return plan, &ValidationError{Message: "Add at least one medicine"}
	}
	if err := utils.Validate(req); err != nil {
		return plan, &ValidationError{Message: utils.FormatValidationError(err)}
	}
	start, ok := models.ParseTime(req.StartDate)
	if !ok {
		return plan, &ValidationError{Message: "Start date is invalid"}
	}
	end, ok := models.ParseTime(req.EndDate)
	if !ok {
		return plan, &ValidationError{Message: "End date is invalid"}
	}
	if end.Before(start) {
		return plan, &ValidationError{Message: "End date cannot be before start date"}
	}
	meds := make([]models.Medicine, 0, len(req.Medicines))
	for _, m := range req.Medicines {
		m.Name, m.Dosage, m.Timing = strings.TrimSpace(m.Name), strings.TrimSpace(m.Dosage), strings.TrimSpace(m.Timing)
		meds = append(meds, m)
	}
	return backend.NewTreatmentPlan{
		PatientID: req.PatientID,
		DiseaseID: req.DiseaseID,
		Title:     strings.TrimSpace(req.Title),
		Goals:     req.Goals,
		StartDate: start,
		EndDate:   end,
		Medicines: meds,
	}, nil
}

// Catalogues are the lookup lists for the authoring form.
type Catalogues struct {
	Diseases  []models.Disease      `json:"diseases"`
	Medicines []models.MedicineInfo `json:"medicines"`
}

// Catalogues loads diseases and medicines. A failing list is left empty and logged.
func (s *Service) Catalogues(ctx context.Context, sess *models.Session) Catalogues {
	var out Catalogues
	diseases, err := s.api.ListDiseases(ctx, sess.Token)
	if err != nil {
		s.logger.Warn("disease catalogue unavailable", "error", err)
	}
	out.Diseases = diseases
	medicines, err := s.api.ListMedicines(ctx, sess.Token)
	if err != nil {
		s.logger.Warn("medicine catalogue unavailable", "error", err)
	}
	out.Medicines = medicines
	return out
}

// Active reports whether the plan covers now.
func Active(p models.TreatmentPlan, now time.Time) bool {
	if p.Status != models.PlanActive {
		return false
	}
	if !p.StartDate.IsZero() && now.Before(p.StartDate) {
		return false
	}
	return p.EndDate.IsZero() || !now.After(p.EndDate.Add(24*time.Hour))
}
