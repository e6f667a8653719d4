// Package respond writes JSON bodies and maps failure kinds to HTTP status codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aryan0dhankhar/orderme/internal/domain"
	"github.com/aryan0dhankhar/orderme/internal/security/auth"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Problem is an error with a client-facing status and detail.
type Problem struct {
	Status int
	Detail string
}

func (p *Problem) Error() string { return p.Detail }

// BadRequest builds a 400 problem.
func BadRequest(detail string) *Problem {
	return &Problem{Status: http.StatusBadRequest, Detail: detail}
}

const internalDetail = "Internal server error"

// Classify returns the status code and client message for err.
// Unknown errors map to 500 without leaking their text.
func Classify(err error) (int, string) {
	var p *Problem
	switch {
	case errors.As(err, &p):
		return p.Status, p.Detail
	case errors.Is(err, auth.ErrMissingBearer):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "Token has expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrInactiveAccount):
		return http.StatusUnauthorized, "Inactive user"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "Insufficient permissions"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusBadRequest, "Email already registered"
	default:
		return http.StatusInternalServerError, internalDetail
	}
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the classified response for err. Every 401 carries a Bearer
// challenge.
func Error(w http.ResponseWriter, err error) {
	status, detail := Classify(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	JSON(w, status, ErrorResponse{Detail: detail})
}
