package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/aryan0dhankhar/orderme/internal/handler/respond"
	"github.com/aryan0dhankhar/orderme/internal/security/auth"
	"github.com/aryan0dhankhar/orderme/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// SignupRequest is the body of POST /auth/signup
type SignupRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	TenantID    int64   `json:"tenant_id"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Msg string `json:"msg"`
}

// TokenResponse is the OAuth2 password-flow body of POST /auth/token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (req *SignupRequest) validate() error {
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}
	if req.TenantID <= 0 {
		return respond.BadRequest("tenant_id must be a positive integer")
	}
	if req.PhoneNumber != nil && strings.TrimSpace(*req.PhoneNumber) == "" {
		req.PhoneNumber = nil
	}
	return nil
}

func (req *LoginRequest) validate() error {
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	return validatePassword(req.Password)
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return respond.BadRequest("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return respond.BadRequest("email is not a valid address")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return respond.BadRequest("password is required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return respond.BadRequest("password must be at most 72 bytes")
	}
	return nil
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &respond.Problem{Status: http.StatusRequestEntityTooLarge, Detail: "Request body too large"}
		}
		return respond.BadRequest("Invalid request body")
	}
	return nil
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to decode signup request", slog.String("error", err.Error()))
		respond.Error(w, err)
		return
	}
	if err := req.validate(); err != nil {
		respond.Error(w, err)
		return
	}

	_, err := h.authService.Signup(r.Context(), service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		TenantID:    req.TenantID,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, MessageResponse{Msg: "User created successfully"})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to decode login request", slog.String("error", err.Error()))
		respond.Error(w, err)
		return
	}
	if err := req.validate(); err != nil {
		respond.Error(w, err)
		return
	}

	issuance, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, issuance)
}

// Token handles POST /auth/token with form fields username and password.
// It is the same login as Login with the OAuth2 password-flow shape.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("failed to parse token form", slog.String("error", err.Error()))
		respond.Error(w, respond.BadRequest("Invalid form body"))
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		respond.Error(w, respond.BadRequest("username and password are required"))
		return
	}
	if err := validatePassword(password); err != nil {
		respond.Error(w, err)
		return
	}

	issuance, err := h.authService.Login(r.Context(), username, password)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, TokenResponse{
		AccessToken: issuance.AccessToken,
		TokenType:   issuance.TokenType,
	})
}
