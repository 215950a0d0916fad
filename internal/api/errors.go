package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categories. Every error returned by the gateway matches exactly one of
// them with errors.Is.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAuthorizationExpired = errors.New("authorization expired")
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrUnavailable          = errors.New("backend unavailable")
)

// Error represents a failed backend call.
type Error struct {
	Status  int
	Message string
	Code    string
	Method  string
	Path    string

	kind  error
	cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.kind.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
	}
	if e.Method != "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, msg)
	}
	return msg
}

// Unwrap exposes the category and the underlying cause, if any.
func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// Kind returns the category sentinel.
func (e *Error) Kind() error {
	return e.kind
}

// Validation returns a local validation error.
func Validation(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...), kind: ErrValidation}
}

// kindForStatus maps a response status to its category.
func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuthorizationExpired
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 400 && status < 500:
		return ErrValidation
	default:
		return ErrUnavailable
	}
}

// UserMessage returns the text shown to a user for err. Backend messages are
// preferred so that server-side validation reads naturally.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch {
		case errors.Is(apiErr.kind, ErrAuthorizationExpired):
			return "session expired"
		case errors.Is(apiErr.kind, ErrUnavailable) && apiErr.Status == 0:
			return "backend unavailable"
		case apiErr.Message != "":
			return apiErr.Message
		}
		return apiErr.kind.Error()
	}
	return err.Error()
}
