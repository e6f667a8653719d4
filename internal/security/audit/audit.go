package audit

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

type requestIDKey struct{}

// WithRequestID stores the request correlation id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Event is one security-relevant action. Secrets never go in Details.
type Event struct {
	Action   string
	TenantID int64
	UserID   int64
	Email    string
	Status   string
	Details  string
}

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit"))}
}

// LogAction writes e. A nil Logger discards it.
func (al *Logger) LogAction(ctx context.Context, e Event) {
	if al == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("action", e.Action),
		slog.String("status", e.Status),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", time.Now().UTC()),
	}
	if e.TenantID != 0 {
		attrs = append(attrs, slog.String("tenant_id", strconv.FormatInt(e.TenantID, 10)))
	}
	if e.UserID != 0 {
		attrs = append(attrs, slog.String("user_id", strconv.FormatInt(e.UserID, 10)))
	}
	if e.Email != "" {
		attrs = append(attrs, slog.String("email", e.Email))
	}
	if e.Details != "" {
		attrs = append(attrs, slog.String("details", e.Details))
	}
	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

func (al *Logger) LogSignup(ctx context.Context, tenantID, userID int64, email, status string) {
	al.LogAction(ctx, Event{Action: "signup", TenantID: tenantID, UserID: userID, Email: email, Status: status})
}

func (al *Logger) LogLogin(ctx context.Context, tenantID, userID int64, email, status string) {
	al.LogAction(ctx, Event{Action: "login", TenantID: tenantID, UserID: userID, Email: email, Status: status})
}

// LogDenied records a rejected request. reason is the failure kind, not the token.
func (al *Logger) LogDenied(ctx context.Context, tenantID, userID int64, path, reason string) {
	al.LogAction(ctx, Event{Action: "access_denied", TenantID: tenantID, UserID: userID, Status: "denied", Details: path + ": " + reason})
}
