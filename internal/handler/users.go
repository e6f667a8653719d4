package handler

import (
	"net/http"

	"github.com/aryan0dhankhar/orderme/internal/handler/respond"
	"github.com/aryan0dhankhar/orderme/internal/security/auth"
	"github.com/aryan0dhankhar/orderme/internal/security/middleware"
)

// UserResponse is the public view of the authenticated user.
type UserResponse struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	TenantID    int64   `json:"tenant_id"`
	Role        string  `json:"role"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// AccessResponse confirms that a role-gated route was reached.
type AccessResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

// Me handles GET /api/v1/users/me
func Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		respond.Error(w, auth.ErrMissingBearer)
		return
	}

	respond.JSON(w, http.StatusOK, UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		TenantID:    user.TenantID,
		Role:        string(user.Role),
		PhoneNumber: user.PhoneNumber,
	})
}

// AccessGranted returns a handler reporting message for the resolved user.
func AccessGranted(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			respond.Error(w, auth.ErrMissingBearer)
			return
		}
		respond.JSON(w, http.StatusOK, AccessResponse{Message: message, UserID: user.ID})
	}
}
