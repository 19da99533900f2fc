package errors

import (
	"errors"
	"net/http"
)

// Error is a domain error with an associated HTTP status code and a stable
// machine-readable code for API clients.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates an Error with the given code, status and message.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Failure taxonomy of the rental core. All of these surface synchronously to
// the caller; none is retried inside the core.
var (
	// ErrUnitUnavailable: the requested unit is not available. Callers should
	// pick another unit, this is not a transient condition.
	ErrUnitUnavailable = New("UNIT_UNAVAILABLE", http.StatusConflict, "bike unit is not available")

	// ErrInvalidTransition: the requested state change is not legal from the
	// current state, either a client ordering bug or a lost race.
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "state transition not allowed")

	// ErrPaymentNotConfirmed: handover attempted before the deposit completed.
	ErrPaymentNotConfirmed = New("PAYMENT_NOT_CONFIRMED", http.StatusConflict, "deposit payment not confirmed")

	ErrNotFound = New("NOT_FOUND", http.StatusNotFound, "resource not found")
)

// Status extracts the HTTP status for an error, defaulting to 500 for
// anything outside the domain taxonomy.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Code extracts the machine-readable code, empty for unknown errors.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
