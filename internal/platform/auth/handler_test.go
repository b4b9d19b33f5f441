package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHandler(t *testing.T) (*Handler, *Sessions, *MemoryRevocationStore) {
	t.Helper()
	s, store := newTestSessions(t)
	return NewHandler(s, zerolog.Nop()), s, store
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func TestLogin_FormSuccess(t *testing.T) {
	h, s, _ := newTestHandler(t)
	e := echo.New()

	form := url.Values{"username": {"admin"}, "password": {"admin"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected 303 to /dashboard, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	cookie := sessionCookie(rec)
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", cookie)
	}
	if _, err := s.Parse(context.Background(), cookie.Value); err != nil {
		t.Errorf("expected issued cookie to verify, got %v", err)
	}
}

func TestLogin_FormInvalidCredentials(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	form := url.Values{"username": {"admin"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Error("expected login form to show the error")
	}
	if sessionCookie(rec) != nil {
		t.Error("expected no session cookie")
	}
}

func TestLogin_JSON(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"admin","password":"admin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("expected 200 success, got %d %s", rec.Code, rec.Body.String())
	}
	if sessionCookie(rec) == nil {
		t.Error("expected session cookie")
	}
}

func TestLogin_JSONInvalidCredentials(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"admin","password":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Login(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	h, s, store := newTestHandler(t)
	token, _, _ := s.Issue("admin")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Logout(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Errorf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if store.Count() != 1 {
		t.Errorf("expected session to be revoked, store has %d", store.Count())
	}
	if _, err := s.Parse(context.Background(), token); !errors.Is(err, ErrRevokedSession) {
		t.Errorf("expected revoked token, got %v", err)
	}
	if c := sessionCookie(rec); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected cookie to be cleared, got %+v", c)
	}
}

func TestLogout_WithoutSession(t *testing.T) {
	h, _, store := newTestHandler(t)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/logout", nil), rec)

	h.Logout(c)
	if rec.Code != http.StatusFound || store.Count() != 0 {
		t.Errorf("expected plain redirect, got %d with %d revocations", rec.Code, store.Count())
	}
}

func TestRoot_Redirects(t *testing.T) {
	h, s, _ := newTestHandler(t)
	e := echo.New()

	rec := httptest.NewRecorder()
	h.Root(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	if rec.Header().Get("Location") != "/login" {
		t.Errorf("expected /login for anonymous user, got %q", rec.Header().Get("Location"))
	}

	token, _, _ := s.Issue("admin")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	h.Root(e.NewContext(req, rec))
	if rec.Header().Get("Location") != "/dashboard" {
		t.Errorf("expected /dashboard for logged in user, got %q", rec.Header().Get("Location"))
	}
}

func TestPages_Render(t *testing.T) {
	h, _, _ := newTestHandler(t)
	e := echo.New()

	tests := []struct {
		name string
		want string
	}{
		{"login.html", `name="username"`},
		{"dashboard.html", `id="patient-search"`},
		{"add_patient.html", `id="patient-form"`},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.Set("user", "admin")
		if err := h.page(tt.name)(c); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("%s: expected %s in page", tt.name, tt.want)
		}
	}
}
