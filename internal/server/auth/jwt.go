// Package auth issues and verifies journalist sessions as signed, expiring
// JWTs. A Session can only be obtained from NewSession or ParseSession.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultValidity = 2 * time.Hour

// Claims carries the journalist identity on top of the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"usr"`
	Admin    bool   `json:"adm,omitempty"`
}

// Session is an authenticated journalist identity.
type Session struct {
	id           string
	journalistID string
	username     string
	admin        bool
	expiresAt    time.Time
	token        string
}

func (s *Session) ID() string           { return s.id }
func (s *Session) JournalistID() string { return s.journalistID }
func (s *Session) Username() string     { return s.username }
func (s *Session) IsAdmin() bool        { return s.admin }
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }
func (s *Session) Token() string        { return s.token }

// Valid reports whether s is non-nil and not expired at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && now.Before(s.expiresAt)
}

// NewSession mints a signed token for the journalist.
func NewSession(journalistID, username string, admin bool, secretKey []byte, validity time.Duration) (*Session, error) {
	if validity == 0 {
		validity = DefaultValidity
	}
	now := time.Now()
	s := &Session{
		id:           uuid.NewString(),
		journalistID: journalistID,
		username:     username,
		admin:        admin,
		expiresAt:    now.Add(validity).Truncate(time.Second),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.id,
			Subject:   journalistID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.expiresAt),
		},
		Username: username,
		Admin:    admin,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return nil, err
	}
	s.token = tokenString

	return s, nil
}

// ParseSession checks the signature and expiry of tokenString.
func ParseSession(tokenString string, secretKey []byte) (*Session, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, common.ErrInvalidToken
	}

	return &Session{
		id:           claims.ID,
		journalistID: claims.Subject,
		username:     claims.Username,
		admin:        claims.Admin,
		expiresAt:    claims.ExpiresAt.Time,
		token:        tokenString,
	}, nil
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
