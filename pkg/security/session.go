package security

import (
	"bitwise74/storefront-api/internal/model"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const SessionCookie = "auth_token"

var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims is what ends up inside the auth_token cookie
type SessionClaims struct {
	Name               string     `json:"name,omitempty"`
	Email              string     `json:"email"`
	Role               model.Role `json:"role"`
	IsTwoFactorEnabled bool       `json:"is_two_factor_enabled"`
	IsOAuth            bool       `json:"is_oauth"`
	Type               string     `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the session
func (c *SessionClaims) UserID() string {
	return c.Subject
}

type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a session for u. isOAuth marks users that signed in through a provider
// and so have no password to change.
func (m *SessionManager) Issue(u *model.User, isOAuth bool) (string, error) {
	if u == nil || u.ID == "" {
		return "", errors.New("no user provided")
	}

	now := m.now()
	claims := &SessionClaims{
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		IsTwoFactorEnabled: u.IsTwoFactorEnabled,
		IsOAuth:            isOAuth,
		Type:               "auth",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

func (m *SessionManager) Parse(tokenStr string) (*SessionClaims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidSession
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	if !token.Valid || claims.Subject == "" || claims.Type != "auth" {
		return nil, ErrInvalidSession
	}

	return claims, nil
}
