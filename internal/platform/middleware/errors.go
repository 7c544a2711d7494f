package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorHandler renders every error as {"error": {...}}. String messages get a
// code derived from the status; structured messages are sent as they are.
// The cause of a 5xx is logged and never sent to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
		}

		if he.Code >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			cause := he.Internal
			if cause == nil {
				cause = he
			}
			logger.Error().
				Err(cause).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", he.Code).
				Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Code)
		} else {
			werr = c.JSON(he.Code, map[string]interface{}{"error": errorBody(he)})
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("failed to write error response")
		}
	}
}

func errorBody(he *echo.HTTPError) interface{} {
	switch m := he.Message.(type) {
	case string:
		return map[string]string{"code": statusCode(he.Code), "message": m}
	case error:
		return map[string]string{"code": statusCode(he.Code), "message": m.Error()}
	default:
		return m
	}
}

// statusCode turns 429 into "too_many_requests".
func statusCode(code int) string {
	text := http.StatusText(code)
	if text == "" {
		return "error"
	}
	return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
}
