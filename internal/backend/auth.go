package backend

import (
	"context"
	"fmt"
	"net/http"

	"healsync-portal/internal/models"
)

// Credentials is a login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is a patient signup request.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Age      int    `json:"age,omitempty"`
}

var loginPaths = map[models.Role]string{
	models.RolePatient: "/api/patients/login",
	models.RoleDoctor:  "/api/doctors/login",
	models.RoleAdmin:   "/api/admin/login",
}

// Login authenticates against the role-specific login endpoint.
func (c *Client) Login(ctx context.Context, role models.Role, creds Credentials) (*models.LoginResult, error) {
	path, ok := loginPaths[role]
	if !ok {
		return nil, fmt.Errorf("backend: login: unsupported role %q", role)
	}
	body, err := c.do(ctx, call{op: "auth.login." + string(role), method: http.MethodPost, path: path, body: creds})
	if err != nil {
		return nil, err
	}
	result, err := models.DecodeOne[models.LoginResult](body)
	if err != nil {
		return nil, fmt.Errorf("backend: login: decode response: %w", err)
	}
	if result.Profile.Role == "" {
		result.Profile.Role = role
	}
	if result.Profile.ID == "" {
		return nil, fmt.Errorf("backend: login: response carried no user id")
	}
	return &result, nil
}

// RegisterPatient creates a patient account.
func (c *Client) RegisterPatient(ctx context.Context, reg Registration) (*models.Profile, error) {
	body, err := c.do(ctx, call{op: "auth.register", method: http.MethodPost, path: "/api/patients/register", body: reg})
	if err != nil {
		return nil, err
	}
	profile, err := models.DecodeOne[models.Profile](body)
	if err != nil {
		return nil, fmt.Errorf("backend: register: decode response: %w", err)
	}
	return &profile, nil
}

// RequestPasswordReset asks the backend to send a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, role models.Role, email string) error {
	_, err := c.do(ctx, call{
		op:     "auth.forgot_password",
		method: http.MethodPost,
		path:   "/api/auth/forgot-password",
		body:   map[string]string{"email": email, "role": string(role)},
	})
	return err
}

// ResetPassword completes a reset with the emailed token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	_, err := c.do(ctx, call{
		op:     "auth.reset_password",
		method: http.MethodPost,
		path:   "/api/auth/reset-password",
		body:   map[string]string{"token": token, "newPassword": password},
	})
	return err
}

// VerifyToken checks that token is still accepted for userID by making an
// authenticated read of that user's appointments. A 401 or 403 answer comes
// back as a *StatusError.
func (c *Client) VerifyToken(ctx context.Context, token string, role models.Role, userID string) error {
	if token == "" {
		return &StatusError{Operation: "auth.verify", Code: http.StatusUnauthorized, Message: "no token"}
	}
	if _, err := c.ListAppointments(ctx, token, role, userID); err != nil {
		return fmt.Errorf("backend: verify token: %w", err)
	}
	return nil
}
