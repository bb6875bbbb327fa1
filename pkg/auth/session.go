package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"bookmarket/pkg/domain"
)

const (
	defaultIssuer = "bookmarket"
	defaultTTL    = 24 * time.Hour
)

// ErrInvalidToken is returned for expired, malformed, or mis-signed tokens.
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims is the verified content of a session token. Every component
// behind the HTTP boundary trusts these claims; nothing re-derives identity.
type SessionClaims struct {
	UserID   string
	Username string
	Admin    bool
}

type tokenClaims struct {
	Username string `json:"username"`
	Admin    bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSessions builds a session manager from a shared secret.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Sessions{
		secret: []byte(secret),
		issuer: defaultIssuer,
		ttl:    ttl,
	}, nil
}

// TTL returns the configured token lifetime.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Issue signs a session token for the user.
func (s *Sessions) Issue(user domain.User) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		Username: user.Username,
		Admin:    user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning its claims.
func (s *Sessions) Verify(tokenString string) (SessionClaims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return SessionClaims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return SessionClaims{}, ErrInvalidToken
	}
	return SessionClaims{
		UserID:   claims.Subject,
		Username: claims.Username,
		Admin:    claims.Admin,
	}, nil
}
