package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CookieName is the cookie carrying the signed session token.
const CookieName = "emr_session"

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
	ErrRevokedSession = errors.New("session revoked")
)

type Claims struct {
	jwt.RegisteredClaims
}

type SessionConfig struct {
	SecretKey []byte
	TTL       time.Duration
	Username  string
	Password  string
	// Secure marks the cookie as HTTPS-only.
	Secure bool
}

// Sessions issues and verifies HS256 session tokens for the single
// configured clinician account. A session has a fixed lifetime from login.
type Sessions struct {
	cfg   SessionConfig
	store RevocationStore
	now   func() time.Time
}

func NewSessions(cfg SessionConfig, store RevocationStore) *Sessions {
	return &Sessions{cfg: cfg, store: store, now: time.Now}
}

// CheckCredentials compares against the configured pair in constant time.
func (s *Sessions) CheckCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	return userOK && passOK
}

// Issue signs a new session token for username.
func (s *Sessions) Issue(username string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.cfg.TTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SecretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, exp, nil
}

// Parse verifies signature, expiry and revocation of a token.
func (s *Sessions) Parse(ctx context.Context, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrNoSession
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.SecretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidSession
	}

	revoked, err := s.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevokedSession
	}
	return claims, nil
}

// FromRequest reads and verifies the session cookie of the request.
func (s *Sessions) FromRequest(c echo.Context) (*Claims, error) {
	cookie, err := c.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return s.Parse(c.Request().Context(), cookie.Value)
}

// Revoke invalidates the session until its natural expiry.
func (s *Sessions) Revoke(ctx context.Context, claims *Claims) error {
	if claims.ExpiresAt == nil {
		return ErrInvalidSession
	}
	return s.store.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// Cookie wraps a signed token in the session cookie.
func (s *Sessions) Cookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(s.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie in the browser.
func (s *Sessions) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
