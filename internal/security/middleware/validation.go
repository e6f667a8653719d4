package middleware

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/aryan0dhankhar/orderme/internal/handler/respond"
)

// MaxBodyBytes caps request bodies on the auth routes.
const MaxBodyBytes = 1 << 20

// ValidateJSONContentType middleware ensures requests with a body declare JSON
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || mediaType != "application/json" {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
					slog.String("method", r.Method),
				)
				respond.JSON(w, http.StatusUnsupportedMediaType, respond.ErrorResponse{Detail: "Content-Type must be application/json"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimitBody rejects bodies larger than limit bytes once the handler reads past it.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
