package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lawfirm/booking/internal/platform/auth"
)

// AuditEntry describes one staff change to a calendar or consultation.
type AuditEntry struct {
	UserID     string
	Role       string
	Action     string // create, update, delete
	Method     string
	Path       string
	Route      string
	Target     string
	IPAddress  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// Audit logs every mutating request that passes through it, with the
// session that made it. Reads are not logged.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			action := httpMethodToAction(req.Method)
			if action == "" {
				return next(c)
			}

			err := next(c)

			entry := newAuditEntry(c, action, err)
			evt := logger.Info()
			if entry.StatusCode >= 400 {
				evt = logger.Warn()
			}
			evt.
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("route", entry.Route).
				Str("target", entry.Target).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("calendar_change")

			return err
		}
	}
}

func newAuditEntry(c echo.Context, action string, err error) AuditEntry {
	req := c.Request()
	sess := auth.SessionFromContext(req.Context())
	rid, _ := c.Get("request_id").(string)

	status := c.Response().Status
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
	} else if err != nil {
		status = http.StatusInternalServerError
	}

	return AuditEntry{
		UserID:     sess.UserID,
		Role:       sess.Role,
		Action:     action,
		Method:     req.Method,
		Path:       req.URL.Path,
		Route:      c.Path(),
		Target:     c.Param("id"),
		IPAddress:  c.RealIP(),
		RequestID:  rid,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	}
}

// httpMethodToAction maps mutating methods to an audit action and returns ""
// for reads.
func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return ""
	}
}
