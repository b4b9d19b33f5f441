package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxHeaderValueSize = 8 << 10

var (
	// Logged, not blocked; queries are parameterized.
	sqlPattern    = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1|1\s*=\s*1)`)
	scriptPattern = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)
)

// requestCheck returns a rejection reason, or "" when the request passes.
type requestCheck func(req *http.Request) string

var requestChecks = []requestCheck{checkPath, checkHeaders, checkQuery}

// Sanitize rejects requests carrying path traversal, null bytes, header
// injection or script injection in the query with 400.
func Sanitize() echo.MiddlewareFunc {
	return SanitizeWithLogger(zerolog.Nop())
}

// SanitizeWithLogger is Sanitize plus a warning for SQL-looking query values.
func SanitizeWithLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			for _, check := range requestChecks {
				if reason := check(req); reason != "" {
					logger.Warn().
						Str("path", req.URL.Path).
						Str("remote_ip", c.RealIP()).
						Str("reason", reason).
						Msg("request rejected")
					return echo.NewHTTPError(http.StatusBadRequest, reason)
				}
			}

			for key, values := range req.URL.Query() {
				for _, v := range values {
					if sqlPattern.MatchString(v) {
						logger.Warn().
							Str("param", key).
							Str("path", req.URL.Path).
							Str("remote_ip", c.RealIP()).
							Msg("SQL-like pattern in query parameter")
					}
				}
			}
			return next(c)
		}
	}
}

func checkPath(req *http.Request) string {
	for _, p := range []string{req.URL.Path, req.URL.EscapedPath()} {
		if hasTraversal(p) {
			return "Path traversal detected"
		}
		if hasNullByte(p) {
			return "Null byte injection detected"
		}
	}
	return ""
}

func checkHeaders(req *http.Request) string {
	for name, values := range req.Header {
		for _, v := range values {
			if len(v) > maxHeaderValueSize {
				return "Header value exceeds maximum size: " + name
			}
			if strings.ContainsAny(v, "\r\n") {
				return "Header injection detected: " + name
			}
		}
	}
	return ""
}

func checkQuery(req *http.Request) string {
	return checkValues(req.URL.Query(), "query parameter")
}

func checkValues(values url.Values, where string) string {
	for key, vs := range values {
		for _, v := range vs {
			if hasNullByte(key) || hasNullByte(v) {
				return "Null byte injection detected in " + where
			}
			if scriptPattern.MatchString(key) || scriptPattern.MatchString(v) {
				return "Script injection detected in " + where
			}
		}
	}
	return ""
}

// hasTraversal matches ".." in raw, percent-encoded and double-encoded form.
func hasTraversal(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(s, "..") || strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func hasNullByte(s string) bool {
	return strings.ContainsRune(s, 0) || strings.Contains(strings.ToLower(s), "%00")
}

// SanitizeString strips null bytes and control characters other than \n, \r
// and \t, then trims surrounding whitespace. Transcribed text goes through it
// before being appended to a note.
func SanitizeString(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == 0 || (unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t') {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(cleaned)
}
