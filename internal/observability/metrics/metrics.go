package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels shared by the auth counters.
const (
	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultInactive           = "inactive"
	ResultDuplicate          = "duplicate"
	ResultExpired            = "expired"
	ResultInvalid            = "invalid"
	ResultForbidden          = "forbidden"
	ResultError              = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderme_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderme_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderme_auth_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	loginDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderme_auth_login_duration_seconds",
		Help:    "Duration of login attempts including password verification",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	signups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderme_auth_signups_total",
		Help: "Signup attempts by result",
	}, []string{"result"})

	tokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderme_auth_token_validations_total",
		Help: "Bearer token checks by result",
	}, []string{"result"})

	authorizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderme_auth_authorization_decisions_total",
		Help: "Role checks by required roles and result",
	}, []string{"roles", "result"})

	userCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderme_user_cache_lookups_total",
		Help: "User cache lookups by result (hit, miss, error, bypass)",
	}, []string{"result"})

	cacheBreakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderme_user_cache_breaker_open",
		Help: "1 while the user cache circuit breaker is open",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin records a login attempt and how long it took.
func ObserveLogin(result string, duration time.Duration) {
	logins.WithLabelValues(result).Inc()
	loginDuration.Observe(duration.Seconds())
}

func ObserveSignup(result string) {
	signups.WithLabelValues(result).Inc()
}

func ObserveTokenValidation(result string) {
	tokenValidations.WithLabelValues(result).Inc()
}

// ObserveAuthorization records a role check. roles is the joined requirement.
func ObserveAuthorization(roles, result string) {
	authorizations.WithLabelValues(roles, result).Inc()
}

func ObserveUserCache(result string) {
	userCacheLookups.WithLabelValues(result).Inc()
}

// SetCacheBreakerOpen flips the breaker gauge.
func SetCacheBreakerOpen(open bool) {
	if open {
		cacheBreakerOpen.Set(1)
		return
	}
	cacheBreakerOpen.Set(0)
}
