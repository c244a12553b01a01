package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healsync-portal/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	s := &models.Session{ID: "sid-1", UserID: "p-1", Role: models.RolePatient, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	token, err := GenerateSessionToken(s, "secret")
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "sid-1", claims.SessionID)
	assert.Equal(t, models.RolePatient, claims.Role)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	s := &models.Session{ID: "sid-1", CreatedAt: past, ExpiresAt: past.Add(time.Hour)}
	token, err := GenerateSessionToken(s, "secret")
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = ValidateToken(token, "secret", jwt.WithTimeFunc(func() time.Time { return past }))
	assert.NoError(t, err)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)
	backend := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	signed, err := backend.SignedString([]byte("backend-key"))
	require.NoError(t, err)

	got, ok := TokenExpiry(signed)
	require.True(t, ok)
	assert.Equal(t, exp, got)

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
	_, ok = TokenExpiry("")
	assert.False(t, ok)
}

func TestTokenIdentity(t *testing.T) {
	backend := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "d-5", "role": "Doctor"})
	signed, err := backend.SignedString([]byte("backend-key"))
	require.NoError(t, err)

	id, role := TokenIdentity(signed)
	assert.Equal(t, "d-5", id)
	assert.Equal(t, models.RoleDoctor, role)

	id, role = TokenIdentity("opaque-token")
	assert.Empty(t, id)
	assert.Empty(t, role)
}

type bookingForm struct {
	DoctorID string `json:"doctorId" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func TestBindAndValidate(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var form bookingForm
	assert.False(t, BindAndValidate(c, &form))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "DoctorID is required")
	assert.Contains(t, resp.Error, "Email must be a valid email")
}

func TestNoticeRoundTrip(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	SetNotice(c, NoticeError, "Appointment could not be cancelled")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.AddCookie(cookies[0])

	n := PopNotice(c2)
	require.NotNil(t, n)
	assert.Equal(t, NoticeError, n.Kind)
	assert.Equal(t, "Appointment could not be cancelled", n.Message)

	cleared := w2.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.True(t, cleared[0].MaxAge < 0)
}

func TestErrorEnvelopeCarriesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("requestID", "req-42")
	Forbidden(c, "You do not have permission to do that")

	assert.Equal(t, http.StatusForbidden, w.Code)
	var resp ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "An error occurred", resp.Message)
	assert.Equal(t, "You do not have permission to do that", resp.Error)
	assert.Equal(t, "req-42", resp.RequestID)
}
