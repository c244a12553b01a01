package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"healsync-portal/internal/backend"
	"healsync-portal/internal/logging"
	"healsync-portal/internal/metrics"
	"healsync-portal/internal/models"
	"healsync-portal/internal/store"
)

const fallbackPrefix = "fallback-"

// participantsPrefix keys the record of who may read and post in a chat.
// The backend has no get-by-id for chat sessions, so Open records it.
const participantsPrefix = "healsync_chat_session:"

// ParticipantsTTL is how long an opened chat stays usable without reopening it.
const ParticipantsTTL = 24 * time.Hour

var (
	// ErrEmptyMessage is returned for blank messages.
	ErrEmptyMessage = errors.New("chat: message is empty")
	// ErrOffline is returned when sending on a locally fabricated session.
	ErrOffline = errors.New("chat: chat is offline, messages cannot be sent right now")
	// ErrForbidden is returned when the session user is not a participant.
	ErrForbidden = errors.New("chat: not a participant of this chat")
)

// API is the subset of the backend client chat needs.
type API interface {
	MessageFetcher
	FindChatSession(ctx context.Context, token string, key backend.ChatKey) (*models.ChatSession, error)
	CreateChatSession(ctx context.Context, token string, key backend.ChatKey) (*models.ChatSession, error)
	SendChatMessage(ctx context.Context, token, sessionID string, msg backend.OutgoingMessage) (*models.ChatMessage, error)
	MarkChatMessageRead(ctx context.Context, token, messageID string) error
}

type Service struct {
	api         API
	store       store.Store
	logger      *logging.Logger
	metrics     *metrics.PortalMetrics
	fallback    bool
	interval    time.Duration
	maxInterval time.Duration
	now         func() time.Time
}

func NewService(api API, st store.Store, logger *logging.Logger, m *metrics.PortalMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		api:         api,
		store:       st,
		logger:      logger,
		metrics:     m,
		fallback:    true,
		interval:    DefaultInterval,
		maxInterval: DefaultMaxInterval,
		now:         time.Now,
	}
}

// WithFallback toggles the offline session used when the API is unreachable.
func (s *Service) WithFallback(enabled bool) *Service {
	s.fallback = enabled
	return s
}

// WithPollIntervals sets the base and maximum poll delay for new pollers.
func (s *Service) WithPollIntervals(base, max time.Duration) *Service {
	if base > 0 {
		s.interval = base
	}
	if max >= s.interval {
		s.maxInterval = max
	}
	return s
}

// Open returns the chat session for an appointment, creating it on first
// use. The session user always fills their own side of the key.
func (s *Service) Open(ctx context.Context, sess *models.Session, key backend.ChatKey) (*models.ChatSession, error) {
	switch sess.Role {
	case models.RolePatient:
		key.PatientID = sess.UserID
	case models.RoleDoctor:
		key.DoctorID = sess.UserID
	}
	if key.AppointmentID == "" || key.DoctorID == "" || key.PatientID == "" {
		return nil, fmt.Errorf("chat: open: appointment, doctor and patient are required")
	}

	cs, err := s.resolve(ctx, sess, key)
	if err != nil {
		return nil, err
	}
	if err := store.SetJSON(ctx, s.store, participantsKey(cs.ID), cs, ParticipantsTTL); err != nil {
		return nil, fmt.Errorf("chat: open: %w", err)
	}
	return cs, nil
}

func (s *Service) resolve(ctx context.Context, sess *models.Session, key backend.ChatKey) (*models.ChatSession, error) {
	found, err := s.api.FindChatSession(ctx, sess.Token, key)
	if err != nil && backend.StatusCode(err) != http.StatusNotFound {
		return s.offline(key, err)
	}
	if found == nil || found.ID == "" {
		found, err = s.api.CreateChatSession(ctx, sess.Token, key)
		if err != nil {
			return s.offline(key, err)
		}
		s.logger.Info("chat session created", "chat_session_id", found.ID, "appointment_id", key.AppointmentID)
	}
	if found.AppointmentID == "" {
		found.AppointmentID = key.AppointmentID
	}
	if found.DoctorID == "" {
		found.DoctorID = key.DoctorID
	}
	if found.PatientID == "" {
		found.PatientID = key.PatientID
	}
	return found, nil
}

func participantsKey(sessionID string) string {
	return participantsPrefix + sessionID
}

// authorize returns the chat sessionID names if the session user opened it
// and is one of its two participants.
func (s *Service) authorize(ctx context.Context, sess *models.Session, sessionID string) (*models.ChatSession, error) {
	var cs models.ChatSession
	if err := store.GetJSON(ctx, s.store, participantsKey(sessionID), &cs); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("chat: load participants: %w", err)
	}
	if sess.UserID == "" || (sess.UserID != cs.DoctorID && sess.UserID != cs.PatientID) {
		return nil, ErrForbidden
	}
	return &cs, nil
}

// Counterpart is the other participant of cs from userID's side.
func Counterpart(userID string, cs *models.ChatSession) string {
	if userID == cs.DoctorID {
		return cs.PatientID
	}
	return cs.DoctorID
}

func (s *Service) offline(key backend.ChatKey, cause error) (*models.ChatSession, error) {
	if !s.fallback || !backend.IsUnavailable(cause) {
		return nil, fmt.Errorf("chat: open: %w", cause)
	}
	s.logger.Warn("chat backend unavailable, using offline session", "appointment_id", key.AppointmentID, "error", cause)
	s.metrics.ObserveFallback("chat")
	return &models.ChatSession{
		ID:            fallbackPrefix + key.AppointmentID,
		AppointmentID: key.AppointmentID,
		DoctorID:      key.DoctorID,
		PatientID:     key.PatientID,
		CreatedAt:     s.now().UTC(),
		Fallback:      true,
	}, nil
}

// IsOffline reports whether sessionID names a locally fabricated session.
func IsOffline(sessionID string) bool {
	return strings.HasPrefix(sessionID, fallbackPrefix)
}

// Messages returns the current message list.
func (s *Service) Messages(ctx context.Context, sess *models.Session, sessionID string) ([]models.ChatMessage, error) {
	if _, err := s.authorize(ctx, sess, sessionID); err != nil {
		return nil, err
	}
	if IsOffline(sessionID) {
		return nil, nil
	}
	msgs, err := s.api.ListChatMessages(ctx, sess.Token, sessionID)
	if err != nil {
		return nil, fmt.Errorf("chat: messages: %w", err)
	}
	return msgs, nil
}

// Send posts body from the session user to receiverID, which must be the
// chat's other participant. An empty receiverID means that participant.
func (s *Service) Send(ctx context.Context, sess *models.Session, sessionID, receiverID, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	cs, err := s.authorize(ctx, sess, sessionID)
	if err != nil {
		return nil, err
	}
	other := Counterpart(sess.UserID, cs)
	if receiverID == "" {
		receiverID = other
	} else if receiverID != other {
		return nil, ErrForbidden
	}
	if IsOffline(sessionID) {
		return nil, ErrOffline
	}
	sent, err := s.api.SendChatMessage(ctx, sess.Token, sessionID, backend.OutgoingMessage{
		SenderID:   sess.UserID,
		ReceiverID: receiverID,
		Message:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: send: %w", err)
	}
	if sent.SessionID == "" {
		sent.SessionID = sessionID
	}
	if sent.Body == "" {
		sent.Body = body
	}
	if sent.Timestamp.IsZero() {
		sent.Timestamp = s.now().UTC()
	}
	return sent, nil
}

// MarkRead flags a message as read.
func (s *Service) MarkRead(ctx context.Context, sess *models.Session, messageID string) error {
	if err := s.api.MarkChatMessageRead(ctx, sess.Token, messageID); err != nil {
		return fmt.Errorf("chat: mark read: %w", err)
	}
	return nil
}

// Poller builds a poller for sessionID using the service's intervals.
func (s *Service) Poller(ctx context.Context, sess *models.Session, sessionID string) (*Poller, error) {
	if _, err := s.authorize(ctx, sess, sessionID); err != nil {
		return nil, err
	}
	return NewPoller(s.api, sess.Token, sessionID, s.logger, s.metrics).
		WithInterval(s.interval).
		WithMaxInterval(s.maxInterval), nil
}
