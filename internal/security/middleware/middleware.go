package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aryan0dhankhar/orderme/internal/domain"
	"github.com/aryan0dhankhar/orderme/internal/handler/respond"
	"github.com/aryan0dhankhar/orderme/internal/observability/metrics"
	"github.com/aryan0dhankhar/orderme/internal/security"
	"github.com/aryan0dhankhar/orderme/internal/security/audit"
	"github.com/aryan0dhankhar/orderme/internal/security/auth"
)

type userContextKey struct{}

// ContextWithUser stores the authenticated user in ctx.
func ContextWithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user stored by Authenticate, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userContextKey{}).(*domain.User); ok {
		return u
	}
	return nil
}

// Resolver maps a bearer token to a user.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*domain.User, error)
}

// Authenticate requires a bearer token that resolves to an active user.
func Authenticate(resolver Resolver, auditLog *audit.Logger, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, err := auth.ExtractBearer(r.Header.Get("Authorization"))
			if err != nil {
				metrics.ObserveTokenValidation(metrics.ResultInvalid)
				auditLog.LogDenied(ctx, 0, 0, r.URL.Path, err.Error())
				respond.Error(w, err)
				return
			}

			user, err := resolver.Resolve(ctx, token)
			if err != nil {
				if !isAuthFailure(err) {
					metrics.ObserveTokenValidation(metrics.ResultError)
					log.Error("identity resolution failed",
						slog.String("request_id", audit.RequestID(ctx)),
						slog.String("error", err.Error()),
					)
					respond.Error(w, err)
					return
				}
				metrics.ObserveTokenValidation(tokenResult(err))
				auditLog.LogDenied(ctx, 0, 0, r.URL.Path, err.Error())
				respond.Error(w, err)
				return
			}

			if _, err := auth.RequireActive(user); err != nil {
				metrics.ObserveTokenValidation(metrics.ResultInactive)
				auditLog.LogDenied(ctx, user.TenantID, user.ID, r.URL.Path, err.Error())
				respond.Error(w, err)
				return
			}

			metrics.ObserveTokenValidation(metrics.ResultSuccess)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user)))
		})
	}
}

// RequireRoles lets the request through only when the authenticated user's
// role is in req. It must run after Authenticate.
func RequireRoles(req security.RoleRequirement, auditLog *audit.Logger) func(http.Handler) http.Handler {
	roles := req.Roles()
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	label := strings.Join(names, ",")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				respond.Error(w, auth.ErrMissingBearer)
				return
			}
			if _, err := security.Authorize(user, req); err != nil {
				metrics.ObserveAuthorization(label, metrics.ResultForbidden)
				auditLog.LogDenied(r.Context(), user.TenantID, user.ID, r.URL.Path, "role "+string(user.Role)+" not in ["+label+"]")
				respond.Error(w, err)
				return
			}
			metrics.ObserveAuthorization(label, metrics.ResultSuccess)
			next.ServeHTTP(w, r)
		})
	}
}

func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrInactiveAccount)
}

func tokenResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return metrics.ResultExpired
	case errors.Is(err, auth.ErrInactiveAccount):
		return metrics.ResultInactive
	default:
		return metrics.ResultInvalid
	}
}
