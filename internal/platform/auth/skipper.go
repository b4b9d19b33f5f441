package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass the session gate: the login flow itself and the
// infrastructure probes.
var publicPaths = map[string]bool{
	"/":          true,
	"/login":     true,
	"/logout":    true,
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper returns true for requests whose path should skip the session
// check. Pass it to RequireSession.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Request().URL.Path]
}

// IsPublicPath reports whether path is served without a session.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
