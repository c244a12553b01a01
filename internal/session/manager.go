package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"healsync-portal/internal/logging"
	"healsync-portal/internal/models"
	"healsync-portal/internal/store"
	"healsync-portal/internal/utils"
)

// CookieName is the browser cookie carrying the signed session pointer.
const CookieName = "healsync_session"

// Manager issues, loads and destroys server-side sessions.
type Manager struct {
	store  store.Store
	secret string
	ttl    time.Duration
	now    func() time.Time
	logger *logging.Logger
}

// NewManager creates a Manager. A non-positive ttl means DefaultTTL.
func NewManager(st store.Store, secret string, ttl time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: st, secret: secret, ttl: ttl, now: time.Now, logger: logger}
}

// WithClock overrides the time source (tests).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func recordKey(id string) string {
	return CurrentKey + ":" + id
}

// Issue creates a session for a successful backend login and returns it with its cookie value.
func (m *Manager) Issue(ctx context.Context, role models.Role, login *models.LoginResult) (*models.Session, string, error) {
	now := m.now().UTC()
	s := &models.Session{
		Version:   models.SessionVersion,
		Role:      role,
		UserID:    login.Profile.ID,
		Name:      login.Profile.Name,
		Email:     login.Profile.Email,
		Token:     login.Token,
		CreatedAt: now,
		ExpiresAt: expiry(now, m.ttl, login.Token),
	}
	cookie, err := m.Save(ctx, s)
	if err != nil {
		return nil, "", err
	}
	m.logger.Info("session issued", "session_id", s.ID, "role", s.Role, "user_id", s.UserID, "expires_at", s.ExpiresAt)
	return s, cookie, nil
}

// Save persists s (assigning an id when it has none) and signs its cookie.
func (m *Manager) Save(ctx context.Context, s *models.Session) (string, error) {
	now := m.now()
	if s.Expired(now) {
		return "", ErrExpired
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Version = models.SessionVersion
	if err := store.SetJSON(ctx, m.store, recordKey(s.ID), s, s.ExpiresAt.Sub(now)); err != nil {
		return "", fmt.Errorf("session: save: %w", err)
	}
	cookie, err := utils.GenerateSessionToken(s, m.secret)
	if err != nil {
		return "", fmt.Errorf("session: save: %w", err)
	}
	return cookie, nil
}

// Load validates a cookie value and returns the stored session.
// Expired records are deleted on sight.
func (m *Manager) Load(ctx context.Context, cookie string) (*models.Session, error) {
	if cookie == "" {
		return nil, ErrNoSession
	}
	claims, err := utils.ValidateToken(cookie, m.secret, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrNoSession
	}

	var s models.Session
	if err := store.GetJSON(ctx, m.store, recordKey(claims.SessionID), &s); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("session: load: %w", err)
	}
	if s.Expired(m.now()) {
		if err := m.store.Delete(ctx, recordKey(s.ID)); err != nil {
			m.logger.Warn("failed to delete expired session", "session_id", s.ID, "error", err)
		}
		return nil, ErrExpired
	}
	return &s, nil
}

// Destroy removes the session a cookie points at. Unknown cookies are ignored.
func (m *Manager) Destroy(ctx context.Context, cookie string) error {
	claims, err := utils.ValidateToken(cookie, m.secret, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, recordKey(claims.SessionID)); err != nil {
		return fmt.Errorf("session: destroy: %w", err)
	}
	return nil
}

// Verifier confirms with the backend that token still authenticates userID as role.
type Verifier interface {
	VerifyToken(ctx context.Context, token string, role models.Role, userID string) error
}

// Restore migrates a browser's stored blobs into a server-side session.
// The blob is client-controlled, so its token must pass verify and any
// identity the token claims must match the blob's.
func (m *Manager) Restore(ctx context.Context, src Source, verify Verifier) (*models.Session, string, error) {
	s, key, err := Resolve(src, m.now())
	if err != nil {
		return nil, "", err
	}
	if err := checkToken(ctx, s, verify); err != nil {
		m.logger.Warn("stored session rejected", "source_key", key, "role", s.Role, "user_id", s.UserID, "error", err)
		return nil, "", err
	}
	// Never trust a client-chosen id.
	s.ID = ""
	cookie, err := m.Save(ctx, s)
	if err != nil {
		return nil, "", err
	}
	m.logger.Info("session restored", "source_key", key, "session_id", s.ID, "role", s.Role)
	return s, cookie, nil
}

func checkToken(ctx context.Context, s *models.Session, verify Verifier) error {
	if s.Token == "" {
		return fmt.Errorf("%w: no token", ErrUnverified)
	}
	if verify == nil {
		return fmt.Errorf("%w: no verifier", ErrUnverified)
	}
	userID, role := utils.TokenIdentity(s.Token)
	if userID != "" && userID != s.UserID {
		return fmt.Errorf("%w: token belongs to another user", ErrUnverified)
	}
	if role != "" && role != s.Role {
		return fmt.Errorf("%w: token carries role %s", ErrUnverified, role)
	}
	if err := verify.VerifyToken(ctx, s.Token, s.Role, s.UserID); err != nil {
		return fmt.Errorf("%w: %w", ErrUnverified, err)
	}
	return nil
}
