// Package httpx renders application faults into the uniform wire envelope.
// Handlers never format their own error bodies; Responder.Error is the single
// place a fault becomes a response.
package httpx

import (
	"fmt"
	"net/http"
)

// FieldError describes a single validation violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Fault is a typed application error carrying its HTTP status.
type Fault struct {
	status  int
	message string
	details []FieldError
}

func (f *Fault) Error() string {
	return f.message
}

// StatusCode returns the HTTP status the fault renders as.
func (f *Fault) StatusCode() int {
	return f.status
}

// Details returns per-field validation violations, if any.
func (f *Fault) Details() []FieldError {
	return f.details
}

// NotFound builds a 404 fault.
func NotFound(format string, args ...any) *Fault {
	return &Fault{status: http.StatusNotFound, message: fmt.Sprintf(format, args...)}
}

// Conflict builds a 409 fault.
func Conflict(format string, args ...any) *Fault {
	return &Fault{status: http.StatusConflict, message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds a 401 fault. The message never discloses whether the
// token was absent, malformed or expired beyond the two documented variants.
func Unauthorized(message string) *Fault {
	return &Fault{status: http.StatusUnauthorized, message: message}
}

// Forbidden builds a 403 fault.
func Forbidden(message string) *Fault {
	return &Fault{status: http.StatusForbidden, message: message}
}

// Validation builds a 400 fault enumerating every violated field.
func Validation(details []FieldError) *Fault {
	return &Fault{status: http.StatusBadRequest, message: "Validation failed", details: details}
}

// BadRequest builds a 400 fault without field details.
func BadRequest(format string, args ...any) *Fault {
	return &Fault{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// RateLimited builds a 429 fault.
func RateLimited() *Fault {
	return &Fault{status: http.StatusTooManyRequests, message: "Too many requests"}
}
