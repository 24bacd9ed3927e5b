package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is a non-2xx response. It unwraps to one of the sentinels above
// when the status maps to one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("phr api: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusConflict:
		return ErrConflict
	case e.Status == http.StatusForbidden, e.Status == http.StatusUnauthorized:
		return ErrForbidden
	case e.Status == http.StatusTooManyRequests, e.Status >= 500:
		return ErrUnavailable
	}
	return nil
}

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// errorMessage extracts a message from the bodies the server produces:
// an OperationOutcome, {"message": ...} or {"error": ...}.
func errorMessage(body []byte, fallback string) string {
	var probe struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
		Issue   []struct {
			Diagnostics string `json:"diagnostics"`
		} `json:"issue"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return fallback
	}
	for _, is := range probe.Issue {
		if is.Diagnostics != "" {
			return is.Diagnostics
		}
	}
	if probe.Error != "" {
		return probe.Error
	}
	var s string
	if len(probe.Message) > 0 && json.Unmarshal(probe.Message, &s) == nil && s != "" {
		return s
	}
	return fallback
}
