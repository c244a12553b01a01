// Package handlers holds the gin handlers for portal pages, the JSON API
// under /api/v1 and the chat streams.
package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"healsync-portal/internal/appointments"
	"healsync-portal/internal/backend"
	"healsync-portal/internal/chat"
	"healsync-portal/internal/directory"
	"healsync-portal/internal/middleware"
	"healsync-portal/internal/models"
	"healsync-portal/internal/schedule"
	"healsync-portal/internal/treatment"
	"healsync-portal/internal/utils"
)

// render executes a page template with the shared layout data.
func render(c *gin.Context, status int, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	sess, _ := middleware.GetSessionFromContext(c)
	data["Title"] = title
	data["Session"] = sess
	// A queued notice is always consumed; one set by the handler wins.
	if queued := utils.PopNotice(c); data["Notice"] == nil {
		data["Notice"] = queued
	}
	c.HTML(status, name, data)
}

// currentSession returns the session AuthMiddleware attached. Routes that
// call it are always mounted behind AuthMiddleware.
func currentSession(c *gin.Context) *models.Session {
	sess, _ := middleware.GetSessionFromContext(c)
	return sess
}

// classify maps a service or backend error to an HTTP status and the
// message shown to the user.
func classify(err error) (int, string) {
	var (
		apptInvalid  *appointments.ValidationError
		planInvalid  *treatment.ValidationError
		schedInvalid *schedule.ValidationError
		transition   *appointments.TransitionError
	)
	switch {
	case errors.As(err, &apptInvalid):
		return http.StatusBadRequest, apptInvalid.Message
	case errors.As(err, &planInvalid):
		return http.StatusBadRequest, planInvalid.Message
	case errors.As(err, &schedInvalid):
		return http.StatusBadRequest, schedInvalid.Message
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, "Message cannot be empty"
	case errors.As(err, &transition):
		return http.StatusConflict, "Cannot update appointment: " + transition.Reason
	case errors.Is(err, appointments.ErrForbidden), errors.Is(err, treatment.ErrForbidden), errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden, "You do not have permission to do that"
	case errors.Is(err, appointments.ErrNotFound):
		return http.StatusNotFound, "Appointment not found"
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound, "Doctor not found"
	case errors.Is(err, chat.ErrOffline):
		return http.StatusServiceUnavailable, "Chat is offline right now. Please try again later"
	case backend.IsUnavailable(err):
		return http.StatusServiceUnavailable, backend.UserMessage(err)
	}
	if code := backend.StatusCode(err); code >= 400 {
		return code, backend.UserMessage(err)
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again."
}

// respondError writes err as a JSON envelope.
func respondError(c *gin.Context, err error) {
	status, message := classify(err)
	utils.Error(c, status, message)
}

// redirectWithError stores err as a snackbar notice and sends the browser to target.
func redirectWithError(c *gin.Context, target string, err error) {
	_, message := classify(err)
	utils.SetNotice(c, utils.NoticeError, message)
	c.Redirect(http.StatusSeeOther, target)
}

// pageNotice is an error notice rendered on the current page.
func pageNotice(err error) *utils.Notice {
	_, message := classify(err)
	return &utils.Notice{Kind: utils.NoticeError, Message: message}
}

// redirectWithNotice stores a notice of kind and sends the browser to target.
func redirectWithNotice(c *gin.Context, target string, kind utils.NoticeKind, message string) {
	utils.SetNotice(c, kind, message)
	c.Redirect(http.StatusSeeOther, target)
}

// returnTarget reads a same-site redirect target from the form, falling back
// to the role's dashboard for anything that is not a local path.
func returnTarget(c *gin.Context, role models.Role) string {
	target := c.PostForm("returnTo")
	if target == "" {
		target = c.Query("returnTo")
	}
	u, err := url.Parse(target)
	if err != nil || target == "" || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(target, "//") {
		return middleware.HomePath(role)
	}
	return target
}
