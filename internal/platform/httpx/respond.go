package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// Envelope is the uniform error response shape.
type Envelope struct {
	StatusCode int          `json:"statusCode"`
	Timestamp  string       `json:"timestamp"`
	Path       string       `json:"path"`
	Method     string       `json:"method"`
	Message    string       `json:"message"`
	Errors     []FieldError `json:"errors,omitempty"`
	Stack      string       `json:"stack,omitempty"`
}

// Responder writes JSON responses and normalizes faults.
type Responder struct {
	logger     *slog.Logger
	production bool
}

// NewResponder constructs a Responder. Outside production the envelope
// includes a stack trace for unexpected faults.
func NewResponder(logger *slog.Logger, production bool) *Responder {
	return &Responder{logger: logger, production: production}
}

// JSON writes data with the given status code.
func (re *Responder) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// NoContent writes an empty 204 response.
func (re *Responder) NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error normalizes any fault into the uniform envelope. Typed faults keep
// their declared status and message; anything else becomes a scrubbed 500.
func (re *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	env := Envelope{
		StatusCode: http.StatusInternalServerError,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       r.URL.Path,
		Method:     r.Method,
		Message:    "Internal server error",
	}

	var fault *Fault
	if errors.As(err, &fault) {
		env.StatusCode = fault.StatusCode()
		env.Message = fault.Error()
		env.Errors = fault.Details()
	} else if !re.production {
		env.Stack = string(debug.Stack())
	}

	if re.logger != nil {
		level := slog.LevelWarn
		if env.StatusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		re.logger.Log(r.Context(), level, "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", env.StatusCode),
			slog.Any("error", err),
		)
	}

	re.JSON(w, env.StatusCode, env)
}

// DecodeJSON decodes the request body into target.
func DecodeJSON(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return BadRequest("Malformed request body")
	}
	return nil
}
