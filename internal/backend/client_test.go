package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healsync-portal/internal/logging"
	"healsync-portal/internal/metrics"
	"healsync-portal/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.PortalMetrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m := metrics.NewPortalMetrics(prometheus.NewRegistry())
	return NewClient(Options{
		BaseURL:      srv.URL + "/",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		Logger:       logging.NewWithWriter("error", io.Discard),
		Metrics:      m,
	}), m
}

func TestLoginDecodesNestedProfile(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/doctors/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "house@healsync.test", creds.Email)

		_, _ = w.Write([]byte(`{"accessToken":"tok-1","doctor":{"_id":"d-9","fullName":"Gregory House","emailId":"house@healsync.test"}}`))
	})

	result, err := client.Login(context.Background(), models.RoleDoctor, Credentials{Email: "house@healsync.test", Password: "vicodin"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", result.Token)
	assert.Equal(t, "d-9", result.Profile.ID)
	assert.Equal(t, "Gregory House", result.Profile.Name)
	assert.Equal(t, models.RoleDoctor, result.Profile.Role)
}

func TestLoginRejectsUnknownRole(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := client.Login(context.Background(), models.Role("nurse"), Credentials{})
	require.Error(t, err)
}

func TestListAppointmentsSendsBearerAndUnwraps(t *testing.T) {
	client, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments/patient/p-1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"_id":"a1","patient":{"id":"p-1"},"doctorId":"d-1","appointmentDate":"2026-10-20T00:00:00Z","timeSlot":"10:30","status":"scheduled"},
			{"id":"a2","patientId":"p-1","doctorId":"d-2","startTime":"2026-10-21T09:00:00Z","endTime":"2026-10-21T09:45:00Z","status":"CONFIRMED"}
		]}`))
	})

	list, err := client.ListAppointments(context.Background(), "secret", models.RolePatient, "p-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].ID)
	assert.Equal(t, "p-1", list[0].PatientID)
	assert.Equal(t, time.Date(2026, 10, 20, 10, 30, 0, 0, time.UTC), list[0].StartTime)
	assert.Equal(t, models.StatusBooked, list[0].Status)
	assert.Equal(t, models.StatusConfirmed, list[1].Status)
	assert.Equal(t, 45*time.Minute, list[1].End().Sub(list[1].StartTime))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamCounter("appointments.list", "ok")))
}

func TestStatusErrorCarriesBackendMessage(t *testing.T) {
	client, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/appointments/a1/status", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Appointment already cancelled"}`))
	})

	err := client.UpdateAppointmentStatus(context.Background(), "tok", "a1", models.StatusConfirmed, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, StatusCode(err))
	assert.False(t, IsUnavailable(err))
	assert.Equal(t, "Appointment already cancelled", UserMessage(err))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamCounter("appointments.status", "4xx")))
}

func TestVerifyToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments/doctor/d-5", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	ctx := context.Background()

	require.NoError(t, client.VerifyToken(ctx, "good", models.RoleDoctor, "d-5"))

	err := client.VerifyToken(ctx, "junk", models.RoleDoctor, "d-5")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	assert.Equal(t, http.StatusUnauthorized, StatusCode(client.VerifyToken(ctx, "", models.RoleDoctor, "d-5")))
}

func TestTimeoutIsReported(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := NewClient(Options{
		BaseURL:     srv.URL,
		ReadTimeout: 50 * time.Millisecond,
		Logger:      logging.NewWithWriter("error", io.Discard),
	})

	_, err := client.ListDoctors(context.Background(), "")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.True(t, IsUnavailable(err))
	assert.Contains(t, UserMessage(err), "too long")
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := NewClient(Options{BaseURL: base, Logger: logging.NewWithWriter("error", io.Discard)})
	_, err := client.ListDiseases(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, IsTimeout(err))
	assert.Zero(t, StatusCode(err))
}

func TestBadGatewayCountsAsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := client.ListDoctors(context.Background(), "")
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, "Request failed (502)", UserMessage(err))
}

func TestFindChatSessionHandlesEmptyAndSingle(t *testing.T) {
	responses := []string{`{"sessions":[]}`, `{"session":{"sessionId":"s-7","appointmentId":"a1"}}`}
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a1", r.URL.Query().Get("appointmentId"))
		_, _ = w.Write([]byte(responses[calls]))
		calls++
	})

	key := ChatKey{AppointmentID: "a1", DoctorID: "d1", PatientID: "p1"}
	session, err := client.FindChatSession(context.Background(), "tok", key)
	require.NoError(t, err)
	assert.Nil(t, session)

	session, err = client.FindChatSession(context.Background(), "tok", key)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "s-7", session.ID)
}

func TestCreateTreatmentPlanPostsMedicines(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var plan NewTreatmentPlan
		require.NoError(t, json.NewDecoder(r.Body).Decode(&plan))
		require.Len(t, plan.Medicines, 1)
		assert.Equal(t, "Metformin", plan.Medicines[0].Name)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"planId":"tp-1","title":"Diabetes care","medications":[{"medicineName":"Metformin","dose":"500mg","frequency":"twice daily"}]}}`))
	})

	created, err := client.CreateTreatmentPlan(context.Background(), "tok", NewTreatmentPlan{
		PatientID: "p1",
		DoctorID:  "d1",
		Title:     "Diabetes care",
		Medicines: []models.Medicine{{Name: "Metformin", Dosage: "500mg", Timing: "twice daily"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "tp-1", created.ID)
	assert.Equal(t, models.PlanActive, created.Status)
	require.Len(t, created.Medicines, 1)
	assert.Equal(t, "twice daily", created.Medicines[0].Timing)
}
