package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"healsync-portal/internal/models"
)

// ListDoctors returns the doctor directory.
func (c *Client) ListDoctors(ctx context.Context, token string) ([]models.Doctor, error) {
	body, err := c.do(ctx, call{op: "doctors.list", method: http.MethodGet, path: "/api/doctors", token: token})
	if err != nil {
		return nil, err
	}
	doctors, err := models.DecodeList[models.Doctor](body, "doctors")
	if err != nil {
		return nil, fmt.Errorf("backend: list doctors: decode response: %w", err)
	}
	return doctors, nil
}

// ListDiseases returns the disease catalogue.
func (c *Client) ListDiseases(ctx context.Context, token string) ([]models.Disease, error) {
	body, err := c.do(ctx, call{op: "diseases.list", method: http.MethodGet, path: "/api/diseases", token: token})
	if err != nil {
		return nil, err
	}
	diseases, err := models.DecodeList[models.Disease](body, "diseases")
	if err != nil {
		return nil, fmt.Errorf("backend: list diseases: decode response: %w", err)
	}
	return diseases, nil
}

// ListMedicines returns the medicine catalogue.
func (c *Client) ListMedicines(ctx context.Context, token string) ([]models.MedicineInfo, error) {
	body, err := c.do(ctx, call{op: "medicines.list", method: http.MethodGet, path: "/api/medicines", token: token})
	if err != nil {
		return nil, err
	}
	medicines, err := models.DecodeList[models.MedicineInfo](body, "medicines")
	if err != nil {
		return nil, fmt.Errorf("backend: list medicines: decode response: %w", err)
	}
	return medicines, nil
}

// ListEmergencyServices returns ambulance and emergency contacts.
func (c *Client) ListEmergencyServices(ctx context.Context, token string) ([]models.EmergencyService, error) {
	body, err := c.do(ctx, call{op: "emergency.list", method: http.MethodGet, path: "/api/emergency-services", token: token})
	if err != nil {
		return nil, err
	}
	services, err := models.DecodeList[models.EmergencyService](body, "services", "emergencyServices")
	if err != nil {
		return nil, fmt.Errorf("backend: list emergency services: decode response: %w", err)
	}
	return services, nil
}

// NewTreatmentPlan is a plan authored by a doctor.
type NewTreatmentPlan struct {
	PatientID string            `json:"patientId"`
	DoctorID  string            `json:"doctorId"`
	DiseaseID string            `json:"diseaseId,omitempty"`
	Title     string            `json:"title"`
	Goals     string            `json:"goals,omitempty"`
	StartDate time.Time         `json:"startDate"`
	EndDate   time.Time         `json:"endDate"`
	Medicines []models.Medicine `json:"medicines"`
}

// ListTreatmentPlans returns plans for a patient or authored by a doctor.
func (c *Client) ListTreatmentPlans(ctx context.Context, token string, role models.Role, userID string) ([]models.TreatmentPlan, error) {
	var path string
	switch role {
	case models.RolePatient:
		path = "/api/treatment-plans/patient/" + url.PathEscape(userID)
	case models.RoleDoctor:
		path = "/api/treatment-plans/doctor/" + url.PathEscape(userID)
	case models.RoleAdmin:
		path = "/api/treatment-plans"
	default:
		return nil, fmt.Errorf("backend: list treatment plans: unsupported role %q", role)
	}
	body, err := c.do(ctx, call{op: "plans.list", method: http.MethodGet, path: path, token: token})
	if err != nil {
		return nil, err
	}
	plans, err := models.DecodeList[models.TreatmentPlan](body, "treatmentPlans", "plans")
	if err != nil {
		return nil, fmt.Errorf("backend: list treatment plans: decode response: %w", err)
	}
	return plans, nil
}

// CreateTreatmentPlan stores a new plan.
func (c *Client) CreateTreatmentPlan(ctx context.Context, token string, plan NewTreatmentPlan) (*models.TreatmentPlan, error) {
	body, err := c.do(ctx, call{op: "plans.create", method: http.MethodPost, path: "/api/treatment-plans", token: token, body: plan})
	if err != nil {
		return nil, err
	}
	created, err := models.DecodeOne[models.TreatmentPlan](body, "treatmentPlan", "plan")
	if err != nil {
		return nil, fmt.Errorf("backend: create treatment plan: decode response: %w", err)
	}
	return &created, nil
}
