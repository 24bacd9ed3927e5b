// Package apperr holds the error taxonomy shared by every domain package and
// its translation into HTTP responses.
package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/phr/phr/internal/platform/fhir"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrPartialFailure   = errors.New("partial failure")
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
)

// Status returns the HTTP status code for err based on the sentinel it wraps.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func issueType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return fhir.IssueTypeInvalid
	case http.StatusForbidden:
		return fhir.IssueTypeSecurity
	case http.StatusNotFound:
		return fhir.IssueTypeNotFound
	case http.StatusConflict:
		return fhir.IssueTypeConflict
	case http.StatusServiceUnavailable:
		return fhir.IssueTypeTransient
	default:
		return fhir.IssueTypeException
	}
}

// ToHTTP converts err into an echo HTTPError whose body is an OperationOutcome.
// Internal errors are reported with a generic message.
func ToHTTP(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		msg = "service temporarily unavailable, please retry"
	}
	return echo.NewHTTPError(status, fhir.NewOperationOutcome(fhir.IssueSeverityError, issueType(status), msg))
}
