package treatment

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healsync-portal/internal/backend"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/models"
)

type fakeAPI struct {
	plans   []models.TreatmentPlan
	created []backend.NewTreatmentPlan
	diseErr error
}

func (f *fakeAPI) ListTreatmentPlans(context.Context, string, models.Role, string) ([]models.TreatmentPlan, error) {
	return f.plans, nil
}

func (f *fakeAPI) CreateTreatmentPlan(_ context.Context, _ string, plan backend.NewTreatmentPlan) (*models.TreatmentPlan, error) {
	f.created = append(f.created, plan)
	return &models.TreatmentPlan{ID: "tp-1", PatientID: plan.PatientID, DoctorID: plan.DoctorID, Title: plan.Title, Medicines: plan.Medicines, Status: models.PlanActive}, nil
}

func (f *fakeAPI) ListDiseases(context.Context, string) ([]models.Disease, error) {
	if f.diseErr != nil {
		return nil, f.diseErr
	}
	return []models.Disease{{ID: "dz-1", Name: "Hypertension"}}, nil
}

func (f *fakeAPI) ListMedicines(context.Context, string) ([]models.MedicineInfo, error) {
	return []models.MedicineInfo{{ID: "m-1", Name: "Amlodipine"}}, nil
}

var doctor = &models.Session{Role: models.RoleDoctor, UserID: "d-1", Token: "tok"}

func validRequest() PlanRequest {
	return PlanRequest{
		PatientID: "p-1",
		Title:     "Blood pressure control",
		StartDate: "2026-10-14",
		EndDate:   "2026-11-14",
		Medicines: []models.Medicine{{Name: " Amlodipine ", Dosage: "5mg", Timing: "morning"}},
	}
}

func newService(api *fakeAPI) *Service {
	return NewService(api, logging.NewWithWriter("error", io.Discard))
}

func TestCreate(t *testing.T) {
	api := &fakeAPI{}
	plan, err := newService(api).Create(context.Background(), doctor, validRequest())
	require.NoError(t, err)
	assert.Equal(t, "tp-1", plan.ID)
	require.Len(t, api.created, 1)
	assert.Equal(t, "d-1", api.created[0].DoctorID)
	assert.Equal(t, "Amlodipine", api.created[0].Medicines[0].Name)
	assert.Equal(t, time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC), api.created[0].EndDate)
}

func TestCreateRejectsPatients(t *testing.T) {
	_, err := newService(&fakeAPI{}).Create(context.Background(), &models.Session{Role: models.RolePatient}, validRequest())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestValidate(t *testing.T) {
	var verr *ValidationError

	noMeds := validRequest()
	noMeds.Medicines = nil
	_, err := Validate(noMeds)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "at least one medicine")

	incomplete := validRequest()
	incomplete.Medicines = []models.Medicine{{Name: "Amlodipine"}}
	_, err = Validate(incomplete)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "Dosage is required")

	backwards := validRequest()
	backwards.EndDate = "2026-10-01"
	_, err = Validate(backwards)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "before start")

	sameDay := validRequest()
	sameDay.EndDate = sameDay.StartDate
	_, err = Validate(sameDay)
	assert.NoError(t, err)
}

func TestListOrdersActiveFirst(t *testing.T) {
	api := &fakeAPI{plans: []models.TreatmentPlan{
		{ID: "old", Status: models.PlanCompleted, StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "a1", Status: models.PlanActive, StartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "a2", Status: models.PlanActive, StartDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
	}}
	plans, err := newService(api).List(context.Background(), doctor)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a1", "old"}, []string{plans[0].ID, plans[1].ID, plans[2].ID})
}

func TestCataloguesTolerateFailures(t *testing.T) {
	cat := newService(&fakeAPI{diseErr: errors.New("down")}).Catalogues(context.Background(), doctor)
	assert.Empty(t, cat.Diseases)
	assert.Len(t, cat.Medicines, 1)
}

func TestActive(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	p := models.TreatmentPlan{Status: models.PlanActive, StartDate: now.Add(-24 * time.Hour), EndDate: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)}
	assert.True(t, Active(p, now), "end date is inclusive")
	p.EndDate = now.Add(-72 * time.Hour)
	assert.False(t, Active(p, now))
}
