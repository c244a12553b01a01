package directory

import "healsync-portal/internal/models"

// Roster is the built-in doctor list served while the API is unreachable.
func Roster() []models.Doctor {
	return []models.Doctor{
		{ID: "fallback-doc-1", Name: "Dr. Sarah Johnson", Specialty: "Cardiology", Shift: "Morning", ExperienceYears: 12, Fee: 800, Available: true},
		{ID: "fallback-doc-2", Name: "Dr. Michael Chen", Specialty: "Neurology", Shift: "Evening", ExperienceYears: 9, Fee: 900, Available: true},
		{ID: "fallback-doc-3", Name: "Dr. Priya Sharma", Specialty: "Pediatrics", Shift: "Morning", ExperienceYears: 7, Fee: 600, Available: true},
		{ID: "fallback-doc-4", Name: "Dr. James Wilson", Specialty: "Orthopedics", Shift: "Night", ExperienceYears: 15, Fee: 1000, Available: true},
		{ID: "fallback-doc-5", Name: "Dr. Aisha Khan", Specialty: "Dermatology", Shift: "Evening", ExperienceYears: 6, Fee: 500, Available: true},
		{ID: "fallback-doc-6", Name: "Dr. Robert Brown", Specialty: "General Medicine", Shift: "Morning", ExperienceYears: 20, Fee: 400, Available: true},
	}
}
