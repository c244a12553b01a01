package models

import (
	"time"
)

// PlanStatus is a treatment plan's lifecycle tag as reported by the backend.
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
	PlanCancelled PlanStatus = "cancelled"
)

// Medicine is a prescribed medicine inside a treatment plan
type Medicine struct {
	Name         string `json:"name" binding:"required" validate:"required"`
	Dosage       string `json:"dosage" binding:"required" validate:"required"`
	Timing       string `json:"timing" binding:"required" validate:"required"`
	Instructions string `json:"instructions,omitempty"`
}

func (m *Medicine) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	m.Name = f.str("name", "medicineName", "medicine.name", "drug")
	m.Dosage = f.str("dosage", "dose")
	m.Timing = f.str("timing", "frequency", "schedule")
	m.Instructions = f.str("instructions", "notes")
	return nil
}

// TreatmentPlan represents a doctor-authored plan for a patient
type TreatmentPlan struct {
	ID          string     `json:"id"`
	PatientID   string     `json:"patientId"`
	DoctorID    string     `json:"doctorId"`
	DiseaseID   string     `json:"diseaseId,omitempty"`
	DiseaseName string     `json:"diseaseName,omitempty"`
	DoctorName  string     `json:"doctorName,omitempty"`
	Title       string     `json:"title"`
	Goals       string     `json:"goals,omitempty"`
	Status      PlanStatus `json:"status"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     time.Time  `json:"endDate"`
	Medicines   []Medicine `json:"medicines"`
}

func (p *TreatmentPlan) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	p.ID = f.str("id", "_id", "planId", "treatmentPlanId")
	p.PatientID = f.str("patientId", "patient_id", "patient.id")
	p.DoctorID = f.str("doctorId", "doctor_id", "doctor.id")
	p.DiseaseID = f.str("diseaseId", "disease_id", "disease.id")
	p.DiseaseName = f.str("diseaseName", "disease.name", "diagnosis")
	p.DoctorName = f.str("doctorName", "doctor.name")
	p.Title = f.str("title", "planName", "name")
	p.Goals = f.str("goals", "description")
	p.Status = PlanStatus(f.str("status"))
	if p.Status == "" {
		p.Status = PlanActive
	}
	p.StartDate = f.time("startDate", "start_date", "fromDate")
	p.EndDate = f.time("endDate", "end_date", "toDate")
	if raw := f.raw("medicines", "medications", "prescriptions"); raw != nil {
		meds, err := DecodeList[Medicine](raw)
		if err != nil {
			return err
		}
		p.Medicines = meds
	}
	return nil
}

// Disease is a catalogue entry used when authoring plans
type Disease struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (d *Disease) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	d.ID = f.str("id", "_id", "diseaseId")
	d.Name = f.str("name", "diseaseName")
	d.Description = f.str("description", "details")
	return nil
}

// MedicineInfo is a medicine catalogue entry
type MedicineInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
}

func (m *MedicineInfo) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	m.ID = f.str("id", "_id", "medicineId")
	m.Name = f.str("name", "medicineName")
	m.Manufacturer = f.str("manufacturer", "company")
	return nil
}

// EmergencyService is an ambulance/emergency contact entry
type EmergencyService struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Type      string `json:"type,omitempty"`
	Available bool   `json:"available"`
}

func (e *EmergencyService) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	e.ID = f.str("id", "_id", "serviceId")
	e.Name = f.str("name", "serviceName")
	e.Phone = f.str("phone", "contactNumber", "phoneNumber")
	e.Type = f.str("type", "serviceType")
	e.Available = true
	if f.raw("available", "isAvailable") != nil {
		e.Available = f.boolean("available", "isAvailable")
	}
	return nil
}
