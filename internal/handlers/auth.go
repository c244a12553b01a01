package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healsync-portal/internal/backend"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/middleware"
	"healsync-portal/internal/models"
	"healsync-portal/internal/session"
	"healsync-portal/internal/utils"
)

// AuthAPI is the part of the backend client used for accounts.
type AuthAPI interface {
	Login(ctx context.Context, role models.Role, creds backend.Credentials) (*models.LoginResult, error)
	RegisterPatient(ctx context.Context, reg backend.Registration) (*models.Profile, error)
	RequestPasswordReset(ctx context.Context, role models.Role, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	VerifyToken(ctx context.Context, token string, role models.Role, userID string) error
}

// AuthHandler handles sign in, sign out, registration and password resets.
type AuthHandler struct {
	api      AuthAPI
	sessions *session.Manager
	secure   bool
	logger   *logging.Logger
}

// NewAuthHandler creates a new AuthHandler. secure marks the session cookie HTTPS only.
func NewAuthHandler(api AuthAPI, sessions *session.Manager, secure bool, logger *logging.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{api: api, sessions: sessions, secure: secure, logger: logger}
}

// LoginRequest represents the request body for signing in.
type LoginRequest struct {
	Role     string `json:"role" form:"role"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

// RegisterRequest represents the patient signup form.
type RegisterRequest struct {
	Name     string `json:"name" form:"name" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
	Phone    string `json:"phone" form:"phone"`
	Gender   string `json:"gender" form:"gender"`
	Age      int    `json:"age" form:"age" binding:"omitempty,min=0,max=130"`
}

// ForgotPasswordRequest asks for a reset link.
type ForgotPasswordRequest struct {
	Role  string `json:"role" form:"role"`
	Email string `json:"email" form:"email" binding:"required,email"`
}

// ResetPasswordRequest completes a reset.
type ResetPasswordRequest struct {
	Token    string `json:"token" form:"token" binding:"required"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
	Confirm  string `json:"confirm" form:"confirm"`
}

// RestoreRequest carries the browser's stored session blobs keyed by storage key.
type RestoreRequest struct {
	Entries map[string]string `json:"entries" binding:"required"`
}

// sessionView is the session as exposed to API clients; the backend token stays server side.
type sessionView struct {
	Role      models.Role `json:"role"`
	UserID    string      `json:"userId"`
	Name      string      `json:"name"`
	Email     string      `json:"email,omitempty"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Redirect  string      `json:"redirect"`
	Token     string      `json:"token,omitempty"`
}

func viewOf(s *models.Session, cookie string) sessionView {
	return sessionView{
		Role:      s.Role,
		UserID:    s.UserID,
		Name:      s.Name,
		Email:     s.Email,
		ExpiresAt: s.ExpiresAt,
		Redirect:  middleware.HomePath(s.Role),
		Token:     cookie,
	}
}

func (h *AuthHandler) setCookie(c *gin.Context, s *models.Session, cookie string) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, cookie, maxAge, "/", "", h.secure, true)
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, "", -1, "/", "", h.secure, true)
}

// activeSession loads the cookie's session for public pages, if any.
func (h *AuthHandler) activeSession(c *gin.Context) *models.Session {
	cookie, err := c.Cookie(session.CookieName)
	if err != nil || cookie == "" {
		return nil
	}
	s, err := h.sessions.Load(c.Request.Context(), cookie)
	if err != nil {
		return nil
	}
	return s
}

func parseLoginRole(value string) models.Role {
	if role, ok := models.ParseRole(value); ok {
		return role
	}
	return models.RolePatient
}

// login authenticates with the backend and issues a portal session.
func (h *AuthHandler) login(c *gin.Context, req LoginRequest) (*models.Session, string, error) {
	role := parseLoginRole(req.Role)
	result, err := h.api.Login(c.Request.Context(), role, backend.Credentials{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		h.logger.Warn("login failed", "role", role, "error", err)
		return nil, "", err
	}
	s, cookie, err := h.sessions.Issue(c.Request.Context(), role, result)
	if err != nil {
		h.logger.Error("failed to issue session", "role", role, "error", err)
		return nil, "", err
	}
	h.setCookie(c, s, cookie)
	return s, cookie, nil
}

// Root sends the browser to its dashboard or the login page.
func (h *AuthHandler) Root(c *gin.Context) {
	if s := h.activeSession(c); s != nil {
		c.Redirect(http.StatusSeeOther, middleware.HomePath(s.Role))
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

// LoginPage renders the sign in form.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if s := h.activeSession(c); s != nil {
		c.Redirect(http.StatusSeeOther, middleware.HomePath(s.Role))
		return
	}
	render(c, http.StatusOK, "login.html", "Sign in", gin.H{
		"Role":  string(parseLoginRole(c.Query("role"))),
		"Email": c.Query("email"),
	})
}

// Login handles the sign in form post.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := utils.BindForm(c, &req); err != nil {
		redirectWithNotice(c, "/login", utils.NoticeError, err.Error())
		return
	}
	s, _, err := h.login(c, req)
	if err != nil {
		redirectWithError(c, "/login?role="+string(parseLoginRole(req.Role)), loginError(err))
		return
	}
	redirectWithNotice(c, middleware.HomePath(s.Role), utils.NoticeSuccess, "Welcome back, "+displayName(s))
}

// LoginAPI handles JSON sign in.
func (h *AuthHandler) LoginAPI(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	s, cookie, err := h.login(c, req)
	if err != nil {
		respondError(c, loginError(err))
		return
	}
	utils.Success(c, "Login successful", viewOf(s, cookie))
}

// loginError turns a rejected login into a credential message while keeping
// reachability failures as they are.
func loginError(err error) error {
	code := backend.StatusCode(err)
	if code == http.StatusUnauthorized || code == http.StatusNotFound || code == http.StatusBadRequest {
		return &backend.StatusError{Operation: "auth.login", Code: http.StatusUnauthorized, Message: "Invalid email or password"}
	}
	return err
}

func displayName(s *models.Session) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

// Logout destroys the session and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.destroy(c)
	redirectWithNotice(c, "/login", utils.NoticeInfo, "You have been signed out")
}

// LogoutAPI is Logout for API clients.
func (h *AuthHandler) LogoutAPI(c *gin.Context) {
	h.destroy(c)
	utils.Success(c, "Logged out successfully", nil)
}

func (h *AuthHandler) destroy(c *gin.Context) {
	cookie, _ := c.Cookie(session.CookieName)
	if cookie == "" {
		if parts := strings.Fields(c.GetHeader("Authorization")); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			cookie = parts[1]
		}
	}
	if err := h.sessions.Destroy(c.Request.Context(), cookie); err != nil {
		h.logger.Warn("failed to destroy session", "error", err)
	}
	h.clearCookie(c)
}

// Me returns the signed in user's session.
func (h *AuthHandler) Me(c *gin.Context) {
	s := currentSession(c)
	utils.Success(c, "Session fetched successfully", viewOf(s, ""))
}

// Restore migrates legacy browser storage into a portal session.
func (h *AuthHandler) Restore(c *gin.Context) {
	var req RestoreRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	s, cookie, err := h.sessions.Restore(c.Request.Context(), session.MapSource(req.Entries), h.api)
	if err != nil {
		if backend.IsUnavailable(err) {
			utils.Error(c, http.StatusServiceUnavailable, backend.UserMessage(err))
			return
		}
		if errors.Is(err, session.ErrExpired) || errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrUnverified) {
			utils.Unauthorized(c, "No valid stored session. Please sign in again")
			return
		}
		h.logger.Error("session restore failed", "error", err)
		utils.InternalServerError(c, "Could not restore session")
		return
	}
	h.setCookie(c, s, cookie)
	utils.Success(c, "Session restored", viewOf(s, cookie))
}

// RegisterPage renders the signup form.
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	render(c, http.StatusOK, "register.html", "Register", gin.H{"Form": RegisterRequest{}})
}

// Register creates a patient account and sends the user to sign in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := utils.BindForm(c, &req); err != nil {
		redirectWithNotice(c, "/register", utils.NoticeError, err.Error())
		return
	}
	if _, err := h.register(c, req); err != nil {
		redirectWithError(c, "/register", err)
		return
	}
	redirectWithNotice(c, "/login?role=patient&email="+url.QueryEscape(req.Email), utils.NoticeSuccess, "Account created. Please sign in")
}

// RegisterAPI is Register for JSON clients.
func (h *AuthHandler) RegisterAPI(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	profile, err := h.register(c, req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Created(c, "User registered successfully", profile)
}

func (h *AuthHandler) register(c *gin.Context, req RegisterRequest) (*models.Profile, error) {
	profile, err := h.api.RegisterPatient(c.Request.Context(), backend.Registration{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Phone:    req.Phone,
		Gender:   req.Gender,
		Age:      req.Age,
	})
	if err != nil {
		h.logger.Warn("registration failed", "error", err)
		return nil, err
	}
	h.logger.Info("patient registered", "user_id", profile.ID)
	return profile, nil
}

// ForgotPasswordPage renders the reset request form.
func (h *AuthHandler) ForgotPasswordPage(c *gin.Context) {
	render(c, http.StatusOK, "forgot_password.html", "Forgot password", nil)
}

// ForgotPassword asks the backend to email a reset link.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := utils.BindForm(c, &req); err != nil {
		redirectWithNotice(c, "/forgot-password", utils.NoticeError, err.Error())
		return
	}
	if err := h.api.RequestPasswordReset(c.Request.Context(), parseLoginRole(req.Role), strings.TrimSpace(req.Email)); err != nil {
		// A 404 is not reported so the form does not reveal which emails exist.
		if backend.StatusCode(err) != http.StatusNotFound {
			redirectWithError(c, "/forgot-password", err)
			return
		}
	}
	redirectWithNotice(c, "/login", utils.NoticeSuccess, "If the account exists, a reset link is on its way")
}

// ResetPasswordPage renders the new password form for an emailed token.
func (h *AuthHandler) ResetPasswordPage(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		redirectWithNotice(c, "/forgot-password", utils.NoticeError, "The reset link is missing its token")
		return
	}
	render(c, http.StatusOK, "reset_password.html", "Reset password", gin.H{"Token": token})
}

// ResetPassword completes a password reset.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	back := "/reset-password?token=" + url.QueryEscape(c.PostForm("token"))
	if err := utils.BindForm(c, &req); err != nil {
		redirectWithNotice(c, back, utils.NoticeError, err.Error())
		return
	}
	if req.Confirm != "" && req.Confirm != req.Password {
		redirectWithNotice(c, back, utils.NoticeError, "Passwords do not match")
		return
	}
	if err := h.api.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		redirectWithError(c, back, err)
		return
	}
	redirectWithNotice(c, "/login", utils.NoticeSuccess, "Password updated. Please sign in")
}
