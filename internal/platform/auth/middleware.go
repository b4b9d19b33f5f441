package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// RequireSession redirects every request without a valid session cookie to
// the login page. Requests for which skipper returns true pass through. On
// success the username is stored under "user" in the echo context and under
// UserIDKey in the request context.
func RequireSession(s *Sessions, skipper func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			claims, err := s.FromRequest(c)
			if err != nil {
				return c.Redirect(http.StatusFound, "/login")
			}

			c.Set("user", claims.Subject)
			ctx := context.WithValue(c.Request().Context(), UserIDKey, claims.Subject)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}
