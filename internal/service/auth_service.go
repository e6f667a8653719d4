package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aryan0dhankhar/orderme/internal/domain"
	"github.com/aryan0dhankhar/orderme/internal/observability/metrics"
	"github.com/aryan0dhankhar/orderme/internal/security/audit"
	"github.com/aryan0dhankhar/orderme/internal/security/auth"
)

// TokenTypeBearer is the token_type returned with every issued token.
const TokenTypeBearer = "bearer"

const dummyPassword = "orderme-timing-equaliser"

// AuthService handles signup and login
type AuthService struct {
	users  domain.UserRepository
	hasher *auth.PasswordHasher
	codec  *auth.TokenCodec
	audit  *audit.Logger
	logger *slog.Logger
	tracer trace.Tracer

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	hasher *auth.PasswordHasher,
	codec *auth.TokenCodec,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:  users,
		hasher: hasher,
		codec:  codec,
		audit:  auditLog,
		logger: logger,
		tracer: otel.Tracer("github.com/aryan0dhankhar/orderme/internal/service"),
	}
}

// SignupInput is a new account request. PhoneNumber is optional.
type SignupInput struct {
	Email       string
	Password    string
	PhoneNumber *string
	TenantID    int64
}

// Issuance is the result of a successful login.
type Issuance struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      int64  `json:"user_id"`
	Role        string `json:"role"`
	TenantID    int64  `json:"tenant_id"`
	ExpiresIn   int64  `json:"expires_in"`
}

// NormalizeEmail trims and lower-cases an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a customer account in the given tenant.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Signup",
		trace.WithAttributes(attribute.Int64("tenant.id", in.TenantID)))
	defer span.End()

	email := NormalizeEmail(in.Email)

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, s.signupFailed(ctx, span, in.TenantID, email, domain.ErrDuplicateEmail)
	case !errors.Is(err, domain.ErrUserNotFound):
		s.logger.Error("failed to check existing email", slog.String("error", err.Error()))
		return nil, s.signupFailed(ctx, span, in.TenantID, email, fmt.Errorf("check email: %w", err))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, s.signupFailed(ctx, span, in.TenantID, email, err)
	}

	user, err := s.users.Insert(ctx, &domain.User{
		Email:        email,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: hash,
		TenantID:     in.TenantID,
		Role:         domain.DefaultRole,
		IsActive:     true,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrDuplicateEmail) {
			s.logger.Error("failed to create user", slog.String("error", err.Error()))
			err = fmt.Errorf("create user: %w", err)
		}
		return nil, s.signupFailed(ctx, span, in.TenantID, email, err)
	}

	metrics.ObserveSignup(metrics.ResultSuccess)
	s.audit.LogSignup(ctx, user.TenantID, user.ID, user.Email, "success")
	s.logger.Info("user signed up",
		slog.Int64("user_id", user.ID),
		slog.Int64("tenant_id", user.TenantID),
	)
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	return user, nil
}

// Login checks credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Issuance, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()
	start := time.Now()

	email = NormalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Error("failed to load user for login", slog.String("error", err.Error()))
			return nil, s.loginFailed(ctx, span, start, 0, 0, email, fmt.Errorf("load user: %w", err))
		}
		// Same bcrypt cost as the found-user path.
		s.hasher.Verify(password, s.timingHash())
		s.logger.Info("login attempt with unknown email")
		return nil, s.loginFailed(ctx, span, start, 0, 0, email, auth.ErrInvalidCredentials)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Info("login failed with wrong password", slog.Int64("user_id", user.ID))
		return nil, s.loginFailed(ctx, span, start, user.TenantID, user.ID, email, auth.ErrInvalidCredentials)
	}

	if _, err := auth.RequireActive(user); err != nil {
		s.logger.Info("login refused for inactive user", slog.Int64("user_id", user.ID))
		return nil, s.loginFailed(ctx, span, start, user.TenantID, user.ID, email, err)
	}

	ttl := s.codec.DefaultTTL()
	token, err := s.codec.Issue(map[string]any{
		auth.ClaimSubject:  strconv.FormatInt(user.ID, 10),
		auth.ClaimEmail:    user.Email,
		auth.ClaimTenantID: user.TenantID,
		auth.ClaimRole:     string(user.Role),
	}, ttl)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, s.loginFailed(ctx, span, start, user.TenantID, user.ID, email, fmt.Errorf("issue token: %w", err))
	}

	metrics.ObserveLogin(metrics.ResultSuccess, time.Since(start))
	s.audit.LogLogin(ctx, user.TenantID, user.ID, user.Email, "success")
	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.Int64("tenant_id", user.TenantID),
	)
	span.SetAttributes(attribute.Int64("user.id", user.ID), attribute.Int64("tenant.id", user.TenantID))

	return &Issuance{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		UserID:      user.ID,
		Role:        string(user.Role),
		TenantID:    user.TenantID,
		ExpiresIn:   int64(ttl / time.Second),
	}, nil
}

// timingHash returns a bcrypt hash at the configured cost for comparisons
// against unknown accounts.
func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("failed to build timing hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) signupFailed(ctx context.Context, span trace.Span, tenantID int64, email string, err error) error {
	result := metrics.ResultError
	if errors.Is(err, domain.ErrDuplicateEmail) {
		result = metrics.ResultDuplicate
	}
	metrics.ObserveSignup(result)
	s.audit.LogSignup(ctx, tenantID, 0, email, result)
	recordSpanError(span, err)
	return err
}

func (s *AuthService) loginFailed(ctx context.Context, span trace.Span, start time.Time, tenantID, userID int64, email string, err error) error {
	result := metrics.ResultError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		result = metrics.ResultInvalidCredentials
	case errors.Is(err, auth.ErrInactiveAccount):
		result = metrics.ResultInactive
	}
	metrics.ObserveLogin(result, time.Since(start))
	s.audit.LogLogin(ctx, tenantID, userID, email, result)
	recordSpanError(span, err)
	return err
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
