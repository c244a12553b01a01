// Package session owns the portal's typed session record: resolving legacy
// browser blobs, issuing signed cookies and enforcing expiry.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"healsync-portal/internal/models"
	"healsync-portal/internal/utils"
)

// DefaultTTL is how long a session lives when the backend token does not say otherwise.
const DefaultTTL = 24 * time.Hour

// CurrentKey is where the versioned session record lives.
const CurrentKey = "healsync_session_v1"

// LookupOrder lists every key a session has ever been stored under, newest
// schema first. Resolve returns the first usable entry.
var LookupOrder = []string{
	CurrentKey,
	"healSync_patient_data",
	"healSync_doctor_data",
	"healSync_admin_data",
	"patientData",
	"doctorData",
	"currentUser",
}

var keyRoles = map[string]models.Role{
	"healSync_patient_data": models.RolePatient,
	"healSync_doctor_data":  models.RoleDoctor,
	"healSync_admin_data":   models.RoleAdmin,
	"patientData":           models.RolePatient,
	"doctorData":            models.RoleDoctor,
}

var (
	// ErrNoSession means no usable session exists.
	ErrNoSession = errors.New("session: not found")
	// ErrExpired means a session existed but is past its expiry.
	ErrExpired = errors.New("session: expired")
	// ErrUnverified means a stored blob's token was not accepted by the backend.
	ErrUnverified = errors.New("session: stored token could not be verified")
)

// Source exposes raw stored blobs by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is a Source backed by a plain map, e.g. a browser's localStorage dump.
type MapSource map[string]string

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Resolve walks LookupOrder and returns the first entry that parses and is
// not expired, upgraded to the current schema, together with the key it came from.
func Resolve(src Source, now time.Time) (*models.Session, string, error) {
	sawExpired := false
	for _, key := range LookupOrder {
		raw, ok := src.Lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		s, err := decode(key, raw, now)
		if err != nil {
			continue
		}
		if s.Expired(now) {
			sawExpired = true
			continue
		}
		return s, key, nil
	}
	if sawExpired {
		return nil, "", ErrExpired
	}
	return nil, "", ErrNoSession
}

func decode(key, raw string, now time.Time) (*models.Session, error) {
	if key == CurrentKey {
		return decodeCurrent(raw)
	}
	return upgradeLegacy(key, raw, now)
}

func decodeCurrent(raw string) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("session: decode record: %w", err)
	}
	if s.Version != models.SessionVersion {
		return nil, fmt.Errorf("session: unsupported version %d", s.Version)
	}
	if s.UserID == "" || s.ExpiresAt.IsZero() {
		return nil, errors.New("session: incomplete record")
	}
	if _, ok := models.ParseRole(string(s.Role)); !ok {
		return nil, fmt.Errorf("session: unknown role %q", s.Role)
	}
	return &s, nil
}

// legacyStamps are the timestamps older clients wrote next to the profile.
type legacyStamps struct {
	LoginTime json.RawMessage `json:"loginTime"`
	LoggedAt  json.RawMessage `json:"loggedInAt"`
	ExpiresAt json.RawMessage `json:"expiresAt"`
	Expiry    json.RawMessage `json:"expiry"`
}

func upgradeLegacy(key, raw string, now time.Time) (*models.Session, error) {
	var login models.LoginResult
	if err := json.Unmarshal([]byte(raw), &login); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", key, err)
	}
	if login.Profile.ID == "" {
		return nil, fmt.Errorf("session: %s carries no user id", key)
	}
	role := login.Profile.Role
	if keyRole, ok := keyRoles[key]; ok {
		role = keyRole
	}
	if role == "" {
		return nil, fmt.Errorf("session: %s carries no role", key)
	}

	var stamps legacyStamps
	_ = json.Unmarshal([]byte(raw), &stamps)

	created, ok := parseStamp(stamps.LoginTime, stamps.LoggedAt)
	if !ok || created.After(now) {
		created = now
	}
	s := &models.Session{
		Version:   models.SessionVersion,
		Role:      role,
		UserID:    login.Profile.ID,
		Name:      login.Profile.Name,
		Email:     login.Profile.Email,
		Token:     login.Token,
		CreatedAt: created,
	}
	// A stored expiry can only shorten the session, never extend it.
	s.ExpiresAt = expiry(created, DefaultTTL, login.Token)
	if explicit, ok := parseStamp(stamps.ExpiresAt, stamps.Expiry); ok && explicit.Before(s.ExpiresAt) {
		s.ExpiresAt = explicit
	}
	return s, nil
}

// expiry is created+ttl, capped by the backend token's own exp claim.
func expiry(created time.Time, ttl time.Duration, token string) time.Time {
	exp := created.Add(ttl)
	if tokenExp, ok := utils.TokenExpiry(token); ok && tokenExp.Before(exp) {
		exp = tokenExp
	}
	return exp
}

func parseStamp(candidates ...json.RawMessage) (time.Time, bool) {
	for _, raw := range candidates {
		if len(raw) == 0 {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			text = string(raw)
		}
		if t, ok := models.ParseTime(text); ok {
			return t, true
		}
	}
	return time.Time{}, false
}
