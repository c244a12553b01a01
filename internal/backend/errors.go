package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTimeout is returned when a call exceeds its per-call deadline.
	ErrTimeout = errors.New("backend: request timed out")
	// ErrUnavailable is returned when the API cannot be reached at all.
	ErrUnavailable = errors.New("backend: service unavailable")
)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Operation string
	Code      int
	Message   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s returned %d: %s", e.Operation, e.Code, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsTimeout reports whether err is a per-call timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnavailable reports whether the API could not be reached (timeouts included).
// Callers use it to decide whether fallback data may be served.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		return true
	}
	code := StatusCode(err)
	return code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout
}

// UserMessage renders err the way the snackbar shows it.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTimeout(err):
		return "The server took too long to respond. Please try again."
	case errors.Is(err, ErrUnavailable):
		return "Unable to reach HealSync right now. Check your connection and try again."
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Message != "" {
			return se.Message
		}
		return fmt.Sprintf("Request failed (%d)", se.Code)
	}
	return "Something went wrong. Please try again."
}

// errorMessage pulls a human message out of an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, msg := range []string{payload.Message, payload.Error, payload.Detail} {
			if msg = strings.TrimSpace(msg); msg != "" {
				return msg
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
