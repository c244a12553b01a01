package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"healsync-portal/internal/models"
)

// ChatKey identifies a chat session.
type ChatKey struct {
	AppointmentID string `json:"appointmentId"`
	DoctorID      string `json:"doctorId"`
	PatientID     string `json:"patientId"`
}

// FindChatSession looks up an existing session. A missing session is
// reported as a *StatusError with code 404 or as (nil, nil) for an empty list.
func (c *Client) FindChatSession(ctx context.Context, token string, key ChatKey) (*models.ChatSession, error) {
	q := url.Values{}
	q.Set("appointmentId", key.AppointmentID)
	q.Set("doctorId", key.DoctorID)
	q.Set("patientId", key.PatientID)
	body, err := c.do(ctx, call{op: "chat.find_session", method: http.MethodGet, path: "/api/chat/sessions?" + q.Encode(), token: token})
	if err != nil {
		return nil, err
	}
	sessions, err := models.DecodeList[models.ChatSession](body, "sessions")
	if err != nil {
		return nil, fmt.Errorf("backend: find chat session: decode response: %w", err)
	}
	if len(sessions) == 0 {
		// Some deployments answer with a single object instead of a list.
		one, err := models.DecodeOne[models.ChatSession](body, "session")
		if err != nil || one.ID == "" {
			return nil, nil
		}
		return &one, nil
	}
	return &sessions[0], nil
}

// CreateChatSession opens a new session.
func (c *Client) CreateChatSession(ctx context.Context, token string, key ChatKey) (*models.ChatSession, error) {
	body, err := c.do(ctx, call{op: "chat.create_session", method: http.MethodPost, path: "/api/chat/sessions", token: token, body: key})
	if err != nil {
		return nil, err
	}
	session, err := models.DecodeOne[models.ChatSession](body, "session")
	if err != nil {
		return nil, fmt.Errorf("backend: create chat session: decode response: %w", err)
	}
	return &session, nil
}

// ListChatMessages returns the full message list of a session.
func (c *Client) ListChatMessages(ctx context.Context, token, sessionID string) ([]models.ChatMessage, error) {
	body, err := c.do(ctx, call{op: "chat.messages", method: http.MethodGet, path: "/api/chat/sessions/" + url.PathEscape(sessionID) + "/messages", token: token})
	if err != nil {
		return nil, err
	}
	msgs, err := models.DecodeList[models.ChatMessage](body, "messages")
	if err != nil {
		return nil, fmt.Errorf("backend: list chat messages: decode response: %w", err)
	}
	return msgs, nil
}

// OutgoingMessage is a message being sent.
type OutgoingMessage struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

// SendChatMessage appends a message to a session.
func (c *Client) SendChatMessage(ctx context.Context, token, sessionID string, msg OutgoingMessage) (*models.ChatMessage, error) {
	body, err := c.do(ctx, call{op: "chat.send", method: http.MethodPost, path: "/api/chat/sessions/" + url.PathEscape(sessionID) + "/messages", token: token, body: msg})
	if err != nil {
		return nil, err
	}
	sent, err := models.DecodeOne[models.ChatMessage](body, "message")
	if err != nil {
		return nil, fmt.Errorf("backend: send chat message: decode response: %w", err)
	}
	return &sent, nil
}

// MarkChatMessageRead flags a message as read.
func (c *Client) MarkChatMessageRead(ctx context.Context, token, messageID string) error {
	_, err := c.do(ctx, call{op: "chat.mark_read", method: http.MethodPut, path: "/api/chat/messages/" + url.PathEscape(messageID) + "/read", token: token})
	return err
}
