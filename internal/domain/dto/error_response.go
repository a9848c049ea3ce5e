package dto

import (
	"net/http"
	"time"
)

// ErrorResponse is the standard JSON error envelope returned by every endpoint.
//
// Fields:
//   - Timestamp: When the error was produced (UTC).
//   - Status: HTTP status code (omitted when not yet known).
//   - Reason: HTTP reason phrase for Status (e.g., "Not Found").
//   - Message: Human-readable message safe to show to clients.
//   - ErrorDetails: Underlying error text, if any.
//   - Path: Request path that produced the error.
type ErrorResponse struct {
	Timestamp    time.Time `json:"timestamp" example:"2024-01-15T10:30:00Z"`
	Status       int       `json:"status,omitempty" example:"404"`
	Reason       string    `json:"error,omitempty" example:"Not Found"`
	Message      string    `json:"message" example:"no applicable price for product 35455, brand 1 at 2020-06-14T10:00:00"`
	ErrorDetails string    `json:"details,omitempty"`
	Path         string    `json:"path,omitempty" example:"/api/v1/prices"`
}

// Error implements the error interface so the envelope can travel through c.Error().
func (e ErrorResponse) Error() string {
	if e.ErrorDetails == "" {
		return e.Message
	}
	return e.Message + ": " + e.ErrorDetails
}

// NewErrorResponse builds an envelope from a message and an optional cause.
func NewErrorResponse(message string, err error) ErrorResponse {
	resp := ErrorResponse{
		Timestamp: time.Now().UTC(),
		Message:   message,
	}
	if err != nil {
		resp.ErrorDetails = err.Error()
	}
	return resp
}

// WithStatus stamps the HTTP status, its reason phrase and the request path.
func (e ErrorResponse) WithStatus(status int, path string) ErrorResponse {
	e.Status = status
	e.Reason = http.StatusText(status)
	e.Path = path
	return e
}
