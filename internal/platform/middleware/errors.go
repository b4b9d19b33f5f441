package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ExposedError is a failure that carries its own status and whose message
// may be shown to clients as is.
type ExposedError interface {
	error
	StatusCode() int
}

// StatusFor maps an error returned by a handler to its HTTP status and the
// message shown to the client.
func StatusFor(err error) (int, string) {
	var ve *record.ValidationError
	var oe *record.OperationError
	var he *echo.HTTPError
	var xe ExposedError

	switch {
	case errors.As(err, &xe):
		return xe.StatusCode(), xe.Error()
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, record.ErrNotFound):
		return http.StatusNotFound, "Record not found"
	case errors.As(err, &oe):
		return http.StatusInternalServerError, oe.Error()
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	default:
		return http.StatusInternalServerError, "An unexpected error occurred"
	}
}

// ErrorHandler replaces echo's default handler so all failures render as
// {"success": false, "error": "..."}.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := StatusFor(err)
		if code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Int("status", code).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, ErrorBody{Success: false, Error: msg})
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}
