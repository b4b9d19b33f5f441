package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestSessions(t *testing.T) (*Sessions, *MemoryRevocationStore) {
	t.Helper()
	store := NewMemoryRevocationStore(time.Minute)
	t.Cleanup(store.Close)
	s := NewSessions(SessionConfig{
		SecretKey: []byte("test-secret"),
		TTL:       8 * time.Hour,
		Username:  "admin",
		Password:  "admin",
	}, store)
	return s, store
}

func TestCheckCredentials(t *testing.T) {
	s, _ := newTestSessions(t)

	tests := []struct {
		user, pass string
		want       bool
	}{
		{"admin", "admin", true},
		{"admin", "wrong", false},
		{"root", "admin", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := s.CheckCredentials(tt.user, tt.pass); got != tt.want {
			t.Errorf("CheckCredentials(%q, %q) = %v, want %v", tt.user, tt.pass, got, tt.want)
		}
	}
}

func TestIssueAndParse(t *testing.T) {
	s, _ := newTestSessions(t)

	token, exp, err := s.Issue("admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if d := time.Until(exp); d < 7*time.Hour || d > 8*time.Hour {
		t.Errorf("expected expiry in ~8h, got %s", d)
	}

	claims, err := s.Parse(context.Background(), token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("expected subject admin, got %q", claims.Subject)
	}
	if claims.ID == "" {
		t.Error("expected a jti")
	}
}

func TestParse_Expired(t *testing.T) {
	s, _ := newTestSessions(t)
	token, _, _ := s.Issue("admin")

	s.now = func() time.Time { return time.Now().Add(9 * time.Hour) }
	_, err := s.Parse(context.Background(), token)
	if !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession for expired token, got %v", err)
	}
}

func TestParse_WrongKey(t *testing.T) {
	s, _ := newTestSessions(t)
	otherStore := NewMemoryRevocationStore(time.Minute)
	defer otherStore.Close()
	other := NewSessions(SessionConfig{SecretKey: []byte("other"), TTL: time.Hour}, otherStore)
	token, _, _ := other.Issue("admin")

	if _, err := s.Parse(context.Background(), token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession, got %v", err)
	}
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	s, _ := newTestSessions(t)
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ID:        "jti",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := s.Parse(context.Background(), token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected HS512 token to be rejected, got %v", err)
	}
}

func TestParse_Empty(t *testing.T) {
	s, _ := newTestSessions(t)
	if _, err := s.Parse(context.Background(), ""); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	s, store := newTestSessions(t)
	ctx := context.Background()
	token, _, _ := s.Issue("admin")
	claims, _ := s.Parse(ctx, token)

	if err := s.Revoke(ctx, claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 revoked entry, got %d", store.Count())
	}
	if _, err := s.Parse(ctx, token); !errors.Is(err, ErrRevokedSession) {
		t.Errorf("expected ErrRevokedSession, got %v", err)
	}
}

func TestCookie(t *testing.T) {
	s, _ := newTestSessions(t)
	exp := time.Now().Add(time.Hour)

	c := s.Cookie("tok", exp)
	if c.Name != CookieName || c.Value != "tok" || !c.HttpOnly || c.Path != "/" {
		t.Errorf("unexpected cookie %+v", c)
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("expected SameSite=Lax, got %v", c.SameSite)
	}

	cleared := s.ClearCookie()
	if cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Errorf("expected expiring cookie, got %+v", cleared)
	}
}
