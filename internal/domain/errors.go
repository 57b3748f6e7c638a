// Package domain holds the error taxonomy shared by the access layer, the
// lifecycle engine and the HTTP features.
package domain

import (
	"errors"
	"net/http"
)

// Error kinds. Match with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrDuplicateIdentity    = errors.New("identity already exists")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("not found")
	ErrStorageFault         = errors.New("storage fault")
	ErrConflict             = errors.New("item changed concurrently")
	ErrTooLarge             = errors.New("content too large")
)

// Error is a classified failure. Kind is one of the sentinels above; Err is
// the optional underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusCode implements the HTTP mapping for this error's kind.
func (e *Error) StatusCode() int {
	return StatusCode(e.Kind)
}

// InvalidInput reports an empty or malformed field.
func InvalidInput(msg string) error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

// DuplicateIdentity reports an email collision.
func DuplicateIdentity(msg string) error {
	return &Error{Kind: ErrDuplicateIdentity, Message: msg}
}

// AuthenticationFailed never says which factor failed.
func AuthenticationFailed() error {
	return &Error{Kind: ErrAuthenticationFailed, Message: "invalid email or password"}
}

// NotFound reports a stale or unknown reference.
func NotFound(what string) error {
	return &Error{Kind: ErrNotFound, Message: what + " not found"}
}

// NotFoundWith is NotFound carrying the storage error that revealed the
// missing piece, for logs.
func NotFoundWith(what string, err error) error {
	return &Error{Kind: ErrNotFound, Message: what + " not found", Err: err}
}

// StorageFault wraps an unreachable store or a metadata/blob inconsistency.
func StorageFault(msg string, err error) error {
	return &Error{Kind: ErrStorageFault, Message: msg, Err: err}
}

// TooLarge reports content over the configured size limit.
func TooLarge(msg string) error {
	return &Error{Kind: ErrTooLarge, Message: msg}
}

// Conflict reports that the item changed between read and write.
func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// StatusCode maps an error to an HTTP status code.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateIdentity), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message safe to show a client. Storage faults and
// unclassified errors are reported generically.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && !errors.Is(err, ErrStorageFault) {
		if de.Message != "" {
			return de.Message
		}
		return de.Kind.Error()
	}
	return "internal error"
}
