package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"healsync-portal/internal/logging"
	"healsync-portal/internal/models"
	"healsync-portal/internal/session"
	"healsync-portal/internal/utils"
)

const sessionKey = "session"

// wantsJSON is true for API routes and clients that asked for JSON.
func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

// sessionCookie reads the session pointer from the cookie or a Bearer header.
func sessionCookie(c *gin.Context) string {
	if cookie, err := c.Cookie(session.CookieName); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}

// AuthMiddleware requires a live portal session. Pages redirect to the login
// page with a snackbar notice; API calls get a 401 envelope.
func AuthMiddleware(mgr *session.Manager, logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *gin.Context) {
		s, err := mgr.Load(c.Request.Context(), sessionCookie(c))
		if err != nil {
			message := "Please sign in to continue"
			if errors.Is(err, session.ErrExpired) {
				message = "Your session has expired. Please sign in again"
			} else if !errors.Is(err, session.ErrNoSession) {
				logger.Error("session lookup failed", "error", err, "path", c.Request.URL.Path)
			}
			if wantsJSON(c) {
				utils.Unauthorized(c, message)
			} else {
				utils.SetNotice(c, utils.NoticeInfo, message)
				c.Redirect(http.StatusSeeOther, "/login")
			}
			c.Abort()
			return
		}

		// Set user information in context for downstream handlers
		c.Set(sessionKey, s)
		c.Set("userID", s.UserID)
		c.Set("userRole", s.Role)

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			utils.InternalServerError(c, "User role not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		isAllowed := false
		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				isAllowed = true
				break
			}
		}

		if !isAllowed {
			if wantsJSON(c) {
				utils.Forbidden(c, "You do not have permission to access this resource.")
			} else {
				utils.SetNotice(c, utils.NoticeError, "You do not have permission to open that page")
				c.Redirect(http.StatusSeeOther, HomePath(role))
			}
			c.Abort()
			return
		}

		c.Next()
	}
}

// HomePath is the dashboard for a role.
func HomePath(role models.Role) string {
	switch role {
	case models.RoleDoctor:
		return "/doctor"
	case models.RoleAdmin:
		return "/admin"
	case models.RolePatient:
		return "/patient"
	}
	return "/login"
}

// GetSessionFromContext returns the session AuthMiddleware attached.
func GetSessionFromContext(c *gin.Context) (*models.Session, bool) {
	v, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}
	s, ok := v.(*models.Session)
	return s, ok
}

// Helper function to get user ID from context
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", false
	}
	idStr, ok := userID.(string)
	return idStr, ok
}

// Helper function to get user role from context
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get("userRole")
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}
