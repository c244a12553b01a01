package utils

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const noticeCookie = "healsync_notice"

// NoticeKind selects the snackbar colour.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// Notice is a one-shot snackbar message carried across a redirect.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// SetNotice queues a snackbar message for the next rendered page.
func SetNotice(c *gin.Context, kind NoticeKind, message string) {
	payload, err := json.Marshal(Notice{Kind: kind, Message: message})
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(noticeCookie, base64.RawURLEncoding.EncodeToString(payload), 60, "/", "", false, true)
}

// PopNotice returns and clears the queued snackbar message, if any.
func PopNotice(c *gin.Context) *Notice {
	raw, err := c.Cookie(noticeCookie)
	if err != nil || raw == "" {
		return nil
	}
	c.SetCookie(noticeCookie, "", -1, "/", "", false, true)
	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var n Notice
	if err := json.Unmarshal(payload, &n); err != nil || n.Message == "" {
		return nil
	}
	return &n
}
