package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"healsync-portal/internal/models"
)

// Claims represents the session cookie claims.
type Claims struct {
	SessionID string      `json:"sid"`
	UserID    string      `json:"user_id"`
	Role      models.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs the cookie value that points at a stored session.
func GenerateSessionToken(s *models.Session, secret string) (string, error) {
	claims := &Claims{
		SessionID: s.ID,
		UserID:    s.UserID,
		Role:      s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(s.CreatedAt),
			Subject:   s.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a session cookie token.
func ValidateToken(tokenString string, secretKey string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	}, opts...)

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// TokenExpiry reads the exp claim of a backend token without verifying it.
// The portal does not hold the backend's key; the value only caps session lifetime.
func TokenExpiry(tokenString string) (time.Time, bool) {
	if tokenString == "" {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time.UTC(), true
}

// TokenIdentity reads the user id and role a backend token claims, without
// verifying it. Empty values mean the token does not say.
func TokenIdentity(tokenString string) (userID string, role models.Role) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", ""
	}
	for _, name := range []string{"userId", "id", "_id", "sub"} {
		if v, ok := claims[name].(string); ok && v != "" {
			userID = v
			break
		}
	}
	if v, ok := claims["role"].(string); ok {
		role, _ = models.ParseRole(v)
	}
	return userID, role
}
