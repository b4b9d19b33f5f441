package auth

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Username string
	Error    string
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Handler serves the login flow and the two HTML pages of the application.
type Handler struct {
	sessions *Sessions
	logger   zerolog.Logger
}

func NewHandler(sessions *Sessions, logger zerolog.Logger) *Handler {
	return &Handler{sessions: sessions, logger: logger}
}

// RegisterRoutes mounts the login flow and the pages. The pages rely on
// RequireSession being installed on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/login", h.LoginPage)
	e.POST("/login", h.Login)
	e.GET("/logout", h.Logout)
	e.GET("/dashboard", h.page("dashboard.html"))
	e.GET("/add-patient", h.page("add_patient.html"))
}

func (h *Handler) Root(c echo.Context) error {
	if _, err := h.sessions.FromRequest(c); err == nil {
		return c.Redirect(http.StatusFound, "/dashboard")
	}
	return c.Redirect(http.StatusFound, "/login")
}

func (h *Handler) LoginPage(c echo.Context) error {
	return render(c, http.StatusOK, "login.html", pageData{})
}

func (h *Handler) Login(c echo.Context) error {
	isJSON := strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		if isJSON {
			return echo.NewHTTPError(http.StatusBadRequest, "No data provided")
		}
		return render(c, http.StatusBadRequest, "login.html", pageData{Error: "Invalid credentials"})
	}

	if !h.sessions.CheckCredentials(req.Username, req.Password) {
		h.logger.Warn().Str("username", req.Username).Str("remote_ip", c.RealIP()).Msg("failed login attempt")
		if isJSON {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
		}
		return render(c, http.StatusUnauthorized, "login.html", pageData{Error: "Invalid credentials"})
	}

	token, exp, err := h.sessions.Issue(req.Username)
	if err != nil {
		return err
	}
	c.SetCookie(h.sessions.Cookie(token, exp))
	h.logger.Info().Str("username", req.Username).Time("expires_at", exp).Msg("user logged in")

	if isJSON {
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}
	return c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout revokes the current session, if any, and always clears the cookie.
func (h *Handler) Logout(c echo.Context) error {
	if claims, err := h.sessions.FromRequest(c); err == nil {
		if err := h.sessions.Revoke(c.Request().Context(), claims); err != nil {
			h.logger.Error().Err(err).Str("username", claims.Subject).Msg("failed to revoke session")
		} else {
			h.logger.Info().Str("username", claims.Subject).Msg("user logged out")
		}
	}
	c.SetCookie(h.sessions.ClearCookie())
	return c.Redirect(http.StatusFound, "/login")
}

func (h *Handler) page(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, _ := c.Get("user").(string)
		return render(c, http.StatusOK, name, pageData{Username: user})
	}
}

func render(c echo.Context, code int, name string, data pageData) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	return c.HTMLBlob(code, buf.Bytes())
}
