package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"healsync-portal/internal/backend"
	"healsync-portal/internal/chat"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/metrics"
	"healsync-portal/internal/models"
	"healsync-portal/internal/utils"
)

const socketWriteWait = 10 * time.Second

// ChatHandler serves chat pages, the chat JSON API and the live message streams.
type ChatHandler struct {
	chat     *chat.Service
	metrics  *metrics.PortalMetrics
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewChatHandler creates a new ChatHandler. WebSocket upgrades are accepted
// from the portal's own host and from allowedOrigins.
func NewChatHandler(svc *chat.Service, m *metrics.PortalMetrics, logger *logging.Logger, allowedOrigins ...string) *ChatHandler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &ChatHandler{chat: svc, metrics: m, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}
	return h
}

// OpenChatRequest names the appointment a chat belongs to.
type OpenChatRequest struct {
	AppointmentID string `json:"appointmentId" form:"appointmentId" binding:"required"`
	DoctorID      string `json:"doctorId" form:"doctorId"`
	PatientID     string `json:"patientId" form:"patientId"`
}

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId" form:"receiverId" binding:"required"`
	Message    string `json:"message" form:"message" binding:"required"`
}

func (h *ChatHandler) open(c *gin.Context, req OpenChatRequest) (*models.ChatSession, error) {
	return h.chat.Open(c.Request.Context(), currentSession(c), backend.ChatKey{
		AppointmentID: req.AppointmentID,
		DoctorID:      req.DoctorID,
		PatientID:     req.PatientID,
	})
}

// OpenPage resolves the chat for an appointment and redirects to it.
func (h *ChatHandler) OpenPage(c *gin.Context) {
	sess := currentSession(c)
	var req OpenChatRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		redirectWithNotice(c, returnTarget(c, sess.Role), utils.NoticeError, "Choose an appointment to chat about")
		return
	}
	cs, err := h.open(c, req)
	if err != nil {
		h.logger.Warn("failed to open chat", "appointment_id", req.AppointmentID, "error", err)
		redirectWithError(c, returnTarget(c, sess.Role), err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/chat/"+url.PathEscape(cs.ID)+"?with="+url.QueryEscape(chat.Counterpart(sess.UserID, cs)))
}

// Page renders a chat with its current messages. The browser then follows
// the event stream for updates.
func (h *ChatHandler) Page(c *gin.Context) {
	sess := currentSession(c)
	id := c.Param("sessionId")
	data := gin.H{
		"ChatSession": models.ChatSession{ID: id, Fallback: chat.IsOffline(id)},
		"ReceiverID":  c.Query("with"),
	}
	messages, err := h.chat.Messages(c.Request.Context(), sess, id)
	if errors.Is(err, chat.ErrForbidden) {
		redirectWithError(c, returnTarget(c, sess.Role), err)
		return
	}
	if err != nil {
		data["Notice"] = pageNotice(err)
	}
	data["Messages"] = messages
	render(c, http.StatusOK, "chat.html", "Chat", data)
}

// SendForm posts a message from the chat page.
func (h *ChatHandler) SendForm(c *gin.Context) {
	id := c.Param("sessionId")
	back := "/chat/" + url.PathEscape(id) + "?with=" + url.QueryEscape(c.PostForm("receiverId"))
	if _, err := h.chat.Send(c.Request.Context(), currentSession(c), id, c.PostForm("receiverId"), c.PostForm("message")); err != nil {
		redirectWithError(c, back, err)
		return
	}
	c.Redirect(http.StatusSeeOther, back)
}

// OpenSession is the JSON chat lookup; the session is created on first use.
func (h *ChatHandler) OpenSession(c *gin.Context) {
	var req OpenChatRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	cs, err := h.open(c, req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, "Chat session ready", cs)
}

// Messages returns the full message list of a chat.
func (h *ChatHandler) Messages(c *gin.Context) {
	messages, err := h.chat.Messages(c.Request.Context(), currentSession(c), c.Param("sessionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	utils.Success(c, "Messages fetched successfully", messages)
}

// SendMessage handles sending a new message.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), currentSession(c), c.Param("sessionId"), req.ReceiverID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Created(c, "Message sent successfully", msg)
}

// MarkRead marks a message as read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	if err := h.chat.MarkRead(c.Request.Context(), currentSession(c), c.Param("messageId")); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, "Message marked as read", nil)
}

// Events streams poller events as Server-Sent Events until the client goes away.
func (h *ChatHandler) Events(c *gin.Context) {
	id := c.Param("sessionId")
	if chat.IsOffline(id) {
		respondError(c, chat.ErrOffline)
		return
	}
	poller, err := h.chat.Poller(c.Request.Context(), currentSession(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go poller.Run(ctx)

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()
	h.logger.Debug("chat stream opened", "chat_session_id", id, "transport", "sse")

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-poller.Events()
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Type), ev)
		return true
	})
	h.logger.Debug("chat stream closed", "chat_session_id", id, "transport", "sse")
}

// socketInbound is a frame sent by the browser over the chat WebSocket.
type socketInbound struct {
	Type       string `json:"type"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
}

// socketOutbound is a frame that is not a poller event.
type socketOutbound struct {
	Type    string              `json:"type"`
	Message *models.ChatMessage `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Socket streams poller events over a WebSocket and accepts outgoing
// messages on the same connection.
func (h *ChatHandler) Socket(c *gin.Context) {
	sess := currentSession(c)
	id := c.Param("sessionId")
	if chat.IsOffline(id) {
		respondError(c, chat.ErrOffline)
		return
	}
	poller, err := h.chat.Poller(c.Request.Context(), sess, id)
	if err != nil {
		respondError(c, err)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "chat_session_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var mu sync.Mutex
	send := func(v any) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
		return conn.WriteJSON(v)
	}

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()
	h.logger.Debug("chat stream opened", "chat_session_id", id, "transport", "websocket")

	go poller.Run(ctx)
	go func() {
		for ev := range poller.Events() {
			if err := send(ev); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		var in socketInbound
		if err := conn.ReadJSON(&in); err != nil {
			h.logger.Debug("chat stream closed", "chat_session_id", id, "transport", "websocket", "error", err)
			return
		}
		switch in.Type {
		case "ping":
			_ = send(socketOutbound{Type: "pong"})
		case "message":
			msg, err := h.chat.Send(ctx, sess, id, in.ReceiverID, in.Text)
			if err != nil {
				_, message := classify(err)
				_ = send(socketOutbound{Type: "error", Error: message})
				continue
			}
			_ = send(socketOutbound{Type: "sent", Message: msg})
		}
	}
}
