package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentUnmarshalFieldFallbacks(t *testing.T) {
	payload := `{
		"_id": 42,
		"patient": {"_id": "p-1", "name": "Asha Rao"},
		"doctor_id": "d-9",
		"doctorName": "Dr. Mehta",
		"appointmentDate": "2026-03-04T00:00:00.000Z",
		"timeSlot": "02:30 PM",
		"status": "SCHEDULED",
		"symptoms": "cough"
	}`

	var appt Appointment
	require.NoError(t, json.Unmarshal([]byte(payload), &appt))

	assert.Equal(t, "42", appt.ID)
	assert.Equal(t, "p-1", appt.PatientID)
	assert.Equal(t, "Asha Rao", appt.PatientName)
	assert.Equal(t, "d-9", appt.DoctorID)
	assert.Equal(t, "Dr. Mehta", appt.DoctorName)
	assert.Equal(t, time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC), appt.StartTime)
	assert.Equal(t, StatusBooked, appt.Status)
	assert.Equal(t, "cough", appt.Reason)
	assert.Equal(t, appt.StartTime.Add(DefaultAppointmentLength), appt.End())
}

func TestAppointmentRoundTripKeepsLocalFlag(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	in := Appointment{ID: "a1", PatientID: "p", DoctorID: "d", StartTime: start, EndTime: start.Add(time.Hour), Status: StatusNoShow, Local: true}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	var out Appointment
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, in, out)
}

func TestAppointmentUnknownStatusIsKept(t *testing.T) {
	var unknown, missing Appointment
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a1","status":"On Hold"}`), &unknown))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a2"}`), &missing))

	assert.Equal(t, AppointmentStatus("on hold"), unknown.Status)
	assert.Equal(t, StatusBooked, missing.Status)
}

func TestParseStatus(t *testing.T) {
	tests := map[string]AppointmentStatus{
		"booked":    StatusBooked,
		"Pending":   StatusBooked,
		"CONFIRMED": StatusConfirmed,
		"completed": StatusCompleted,
		"canceled":  StatusCancelled,
		"no_show":   StatusNoShow,
		"No Show":   StatusNoShow,
	}
	for input, want := range tests {
		got, ok := ParseStatus(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}
	_, ok := ParseStatus("archived")
	assert.False(t, ok)
}

func TestDecodeListUnwrapsEnvelopes(t *testing.T) {
	bare := `[{"id":"1","name":"Cardiology Doc"}]`
	wrapped := `{"success":true,"data":{"doctors":[{"doctorId":"2","doctorName":"Dr. B","speciality":"ENT","available":false}]}}`

	list, err := DecodeList[Doctor]([]byte(bare), "doctors")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1", list[0].ID)
	assert.True(t, list[0].Available)

	list, err = DecodeList[Doctor]([]byte(wrapped), "doctors")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].ID)
	assert.Equal(t, "ENT", list[0].Specialty)
	assert.False(t, list[0].Available)

	list, err = DecodeList[Doctor]([]byte(`null`))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoginResultNestedProfile(t *testing.T) {
	payload := `{"message":"ok","token":"abc","patient":{"patientId":7,"firstName":"Ravi","lastName":"K","emailId":"r@example.com"}}`

	var res LoginResult
	require.NoError(t, json.Unmarshal([]byte(payload), &res))

	assert.Equal(t, "abc", res.Token)
	assert.Equal(t, "7", res.Profile.ID)
	assert.Equal(t, "Ravi K", res.Profile.Name)
	assert.Equal(t, "r@example.com", res.Profile.Email)
	assert.Equal(t, RolePatient, res.Profile.Role)
}

func TestTreatmentPlanMedicines(t *testing.T) {
	payload := `{"planId":"tp1","patientId":"p1","doctorId":"d1","diagnosis":"Asthma","medications":[{"medicineName":"Salbutamol","dose":"2 puffs","frequency":"as needed"}]}`

	var plan TreatmentPlan
	require.NoError(t, json.Unmarshal([]byte(payload), &plan))

	assert.Equal(t, "tp1", plan.ID)
	assert.Equal(t, "Asthma", plan.DiseaseName)
	assert.Equal(t, PlanActive, plan.Status)
	require.Len(t, plan.Medicines, 1)
	assert.Equal(t, Medicine{Name: "Salbutamol", Dosage: "2 puffs", Timing: "as needed"}, plan.Medicines[0])
}

func TestParseTimeAndClock(t *testing.T) {
	got, ok := ParseTime("2026-01-02 08:15:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 2, 8, 15, 0, 0, time.UTC), got)

	_, ok = ParseTime("next tuesday")
	assert.False(t, ok)

	got, ok = CombineDateClock("2026-01-02", "17:45")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 2, 17, 45, 0, 0, time.UTC), got)

	_, ok = CombineDateClock("02/01/2026", "17:45")
	assert.False(t, ok)
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, Session{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Session{ExpiresAt: now}.Expired(now))
}
