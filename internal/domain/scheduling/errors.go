package scheduling

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrAlreadyBlocked   = errors.New("date already blocked")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrForbidden        = errors.New("forbidden")
	ErrInternal         = errors.New("internal error")
)

// ValidationError collects per-field problems. It matches ErrInvalidArgument
// under errors.Is.
type ValidationError struct {
	FieldErrors map[string]string
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() error { return ErrInvalidArgument }

func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Err returns v when it holds at least one field error, nil otherwise.
func (v *ValidationError) Err() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// Internal wraps a storage failure so it matches ErrInternal while keeping
// the cause for server-side logs.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInternal) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// APIError is the body of every failed response.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// HTTPError maps a domain error onto an echo error. Internal failures keep
// their cause in HTTPError.Internal and show the client an opaque message.
func HTTPError(err error) *echo.HTTPError {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return echo.NewHTTPError(http.StatusBadRequest, APIError{
			Code: "invalid_argument", Message: "validation failed", Fields: vErr.FieldErrors,
		})
	case errors.Is(err, ErrInvalidArgument):
		return echo.NewHTTPError(http.StatusBadRequest, APIError{Code: "invalid_argument", Message: err.Error()})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, APIError{Code: "not_found", Message: err.Error()})
	case errors.Is(err, ErrAlreadyBlocked):
		return echo.NewHTTPError(http.StatusConflict, APIError{Code: "already_blocked", Message: err.Error()})
	case errors.Is(err, ErrCapacityExceeded):
		return echo.NewHTTPError(http.StatusConflict, APIError{Code: "capacity_exceeded", Message: err.Error()})
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, APIError{Code: "forbidden", Message: err.Error()})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError,
			APIError{Code: "internal_error", Message: "internal error"}).SetInternal(err)
	}
}
