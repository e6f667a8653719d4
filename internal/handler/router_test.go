package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/orderme/internal/domain"
	"github.com/aryan0dhankhar/orderme/internal/handler/respond"
	"github.com/aryan0dhankhar/orderme/internal/repository"
	"github.com/aryan0dhankhar/orderme/internal/security/audit"
	"github.com/aryan0dhankhar/orderme/internal/security/auth"
	"github.com/aryan0dhankhar/orderme/internal/service"
)

type testServer struct {
	handler http.Handler
	users   *repository.MemoryUserRepository
	now     time.Time
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, formToken bool, checks map[string]Pinger) *testServer {
	t.Helper()
	ts := &testServer{users: repository.NewMemoryUserRepository(), now: time.Now()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:     "router-secret",
		Algorithm:  "HS256",
		DefaultTTL: 30 * time.Minute,
	}, auth.WithClock(func() time.Time { return ts.now }))
	require.NoError(t, err)

	auditLog := audit.NewLogger(logger)
	svc := service.NewAuthService(ts.users, auth.NewPasswordHasher(bcrypt.MinCost), codec, auditLog, logger)

	ts.handler = NewRouter(RouterConfig{
		AuthService:       svc,
		Resolver:          auth.NewIdentityResolver(codec, ts.users),
		Audit:             auditLog,
		Health:            NewHealthHandler(checks, logger),
		AllowedOrigins:    []string{"*"},
		FormTokenEndpoint: formToken,
		Logger:            logger,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, contentType, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) postJSON(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, path, "application/json", body, "")
}

func (ts *testServer) signupAndLogin(t *testing.T, email string, role domain.Role) string {
	t.Helper()
	rec := ts.postJSON(t, "/auth/signup", `{"email":"`+email+`","password":"pw123456","tenant_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	if role != domain.RoleCustomer {
		u, err := ts.users.FindByEmail(context.Background(), email)
		require.NoError(t, err)
		require.NoError(t, ts.users.SetRole(u.ID, role))
	}

	rec = ts.postJSON(t, "/auth/login", `{"email":"`+email+`","password":"pw123456"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var iss service.Issuance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &iss))
	return iss.AccessToken
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body respond.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestRouter_Welcome(t *testing.T) {
	ts := newTestServer(t, true, nil)
	rec := ts.do(t, http.MethodGet, "/", "", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to OrderMe API"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_HealthAndReadiness(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	ts := newTestServer(t, true, map[string]Pinger{"database": ok})
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "", "", "").Code)

	rec := ts.do(t, http.MethodGet, "/readyz", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"database":"ok"}}`, rec.Body.String())

	ts = newTestServer(t, true, map[string]Pinger{"database": ok, "redis": down})
	rec = ts.do(t, http.MethodGet, "/readyz", "", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not_ready","checks":{"database":"ok","redis":"error"}}`, rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	ts := newTestServer(t, true, nil)
	ts.do(t, http.MethodGet, "/", "", "", "")

	rec := ts.do(t, http.MethodGet, "/metrics", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orderme_http_requests_total")
}

func TestRouter_Signup(t *testing.T) {
	ts := newTestServer(t, true, nil)

	rec := ts.postJSON(t, "/auth/signup", `{"email":"a@x.com","password":"pw123456","tenant_id":1}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"msg":"User created successfully"}`, rec.Body.String())
	assert.Equal(t, 1, ts.users.Len())

	rec = ts.postJSON(t, "/auth/signup/", `{"email":"b@x.com","password":"pw123456","tenant_id":1,"phone_number":"+15550100"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.postJSON(t, "/auth/signup", `{"email":"a@x.com","password":"other","tenant_id":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", detail(t, rec))
	assert.Equal(t, 2, ts.users.Len())
}

func TestRouter_SignupValidation(t *testing.T) {
	ts := newTestServer(t, true, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"email":`},
		{"missing email", `{"password":"pw123456","tenant_id":1}`},
		{"invalid email", `{"email":"not-an-email","password":"pw123456","tenant_id":1}`},
		{"display name", `{"email":"Alice <a@x.com>","password":"pw123456","tenant_id":1}`},
		{"empty password", `{"email":"a@x.com","password":"","tenant_id":1}`},
		{"password too long", `{"email":"a@x.com","password":"` + strings.Repeat("p", 73) + `","tenant_id":1}`},
		{"zero tenant", `{"email":"a@x.com","password":"pw123456","tenant_id":0}`},
		{"negative tenant", `{"email":"a@x.com","password":"pw123456","tenant_id":-4}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.postJSON(t, "/auth/signup", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, detail(t, rec))
		})
	}
	assert.Equal(t, 0, ts.users.Len())
}

func TestRouter_SignupRequiresJSON(t *testing.T) {
	ts := newTestServer(t, true, nil)
	rec := ts.do(t, http.MethodPost, "/auth/signup", "text/plain", `{"email":"a@x.com"}`, "")

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_SignupBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, true, nil)
	body := `{"email":"a@x.com","password":"` + strings.Repeat("p", 2<<20) + `"}`

	rec := ts.postJSON(t, "/auth/signup", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouter_Login(t *testing.T) {
	ts := newTestServer(t, true, nil)
	require.Equal(t, http.StatusCreated, ts.postJSON(t, "/auth/signup", `{"email":"a@x.com","password":"pw123456","tenant_id":9}`).Code)

	rec := ts.postJSON(t, "/auth/login", `{"email":"A@X.com","password":"pw123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, "customer", body["role"])
	assert.EqualValues(t, 9, body["tenant_id"])
	assert.EqualValues(t, 1800, body["expires_in"])
	assert.Contains(t, body, "user_id")
}

func TestRouter_LoginFailures(t *testing.T) {
	ts := newTestServer(t, true, nil)
	require.Equal(t, http.StatusCreated, ts.postJSON(t, "/auth/signup", `{"email":"a@x.com","password":"pw123456","tenant_id":1}`).Code)

	rec := ts.postJSON(t, "/auth/login", `{"email":"a@x.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", detail(t, rec))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = ts.postJSON(t, "/auth/login", `{"email":"nobody@x.com","password":"pw123456"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", detail(t, rec))

	u, err := ts.users.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NoError(t, ts.users.SetActive(u.ID, false))

	rec = ts.postJSON(t, "/auth/login", `{"email":"a@x.com","password":"pw123456"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Inactive user", detail(t, rec))
	assert.NotContains(t, rec.Body.String(), "access_token")
}

func TestRouter_FormToken(t *testing.T) {
	ts := newTestServer(t, true, nil)
	require.Equal(t, http.StatusCreated, ts.postJSON(t, "/auth/signup", `{"email":"a@x.com","password":"pw123456","tenant_id":1}`).Code)

	form := url.Values{"username": {"a@x.com"}, "password": {"pw123456"}}.Encode()
	rec := ts.do(t, http.MethodPost, "/auth/token", "application/x-www-form-urlencoded", form, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 2)
	assert.Equal(t, "bearer", body["token_type"])

	token, _ := body["access_token"].(string)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/users/me", "", "", token).Code)

	form = url.Values{"username": {"a@x.com"}, "password": {"nope"}}.Encode()
	rec = ts.do(t, http.MethodPost, "/auth/token", "application/x-www-form-urlencoded", form, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/token", "application/x-www-form-urlencoded", "username=a%40x.com", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_PasswordBeyondBcryptLimit(t *testing.T) {
	ts := newTestServer(t, true, nil)
	full := strings.Repeat("p", 72)
	rec := ts.postJSON(t, "/auth/signup", `{"email":"a@x.com","password":"`+full+`","tenant_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	form := url.Values{"username": {"a@x.com"}, "password": {full + "WRONG-SUFFIX"}}.Encode()
	rec = ts.do(t, http.MethodPost, "/auth/token", "application/x-www-form-urlencoded", form, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "access_token")

	rec = ts.postJSON(t, "/auth/login", `{"email":"a@x.com","password":"`+full+`WRONG-SUFFIX"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "access_token")

	form = url.Values{"username": {"a@x.com"}, "password": {full}}.Encode()
	rec = ts.do(t, http.MethodPost, "/auth/token", "application/x-www-form-urlencoded", form, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_FormTokenDisabled(t *testing.T) {
	ts := newTestServer(t, false, nil)
	form := url.Values{"username": {"a@x.com"}, "password": {"pw123456"}}.Encode()

	rec := ts.do(t, http.MethodPost, "/auth/token", "application/x-www-form-urlencoded", form, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Me(t *testing.T) {
	ts := newTestServer(t, true, nil)
	token := ts.signupAndLogin(t, "a@x.com", domain.RoleCustomer)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/me", "", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a@x.com", body.Email)
	assert.Equal(t, "customer", body.Role)
	assert.Equal(t, int64(1), body.TenantID)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRouter_Unauthenticated(t *testing.T) {
	ts := newTestServer(t, true, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/me", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", detail(t, rec))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = ts.do(t, http.MethodGet, "/api/v1/users/me", "", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Could not validate credentials", detail(t, rec))
}

func TestRouter_ExpiredToken(t *testing.T) {
	ts := newTestServer(t, true, nil)
	token := ts.signupAndLogin(t, "a@x.com", domain.RoleCustomer)

	ts.now = ts.now.Add(31 * time.Minute)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/me", "", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has expired", detail(t, rec))
}

func TestRouter_DeactivatedAfterLogin(t *testing.T) {
	ts := newTestServer(t, true, nil)
	token := ts.signupAndLogin(t, "a@x.com", domain.RoleCustomer)

	u, err := ts.users.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NoError(t, ts.users.SetActive(u.ID, false))

	rec := ts.do(t, http.MethodGet, "/api/v1/users/customer", "", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Inactive user", detail(t, rec))
}

func TestRouter_RoleGates(t *testing.T) {
	ts := newTestServer(t, true, nil)
	customer := ts.signupAndLogin(t, "c@x.com", domain.RoleCustomer)
	tenantAdmin := ts.signupAndLogin(t, "t@x.com", domain.RoleTenantAdmin)
	platformAdmin := ts.signupAndLogin(t, "p@x.com", domain.RolePlatformAdmin)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"customer on customer route", "/api/v1/users/customer", customer, http.StatusOK},
		{"customer on admin route", "/api/v1/users/admin", customer, http.StatusForbidden},
		{"tenant admin on admin route", "/api/v1/users/admin", tenantAdmin, http.StatusOK},
		{"tenant admin on customer route", "/api/v1/users/customer", tenantAdmin, http.StatusForbidden},
		{"platform admin on admin route", "/api/v1/users/admin", platformAdmin, http.StatusOK},
		{"platform admin on customer route", "/api/v1/users/customer", platformAdmin, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.path, "", "", tt.token)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusForbidden {
				assert.Equal(t, "Insufficient permissions", detail(t, rec))
			}
		})
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/users/admin", "", "", tenantAdmin)
	assert.Contains(t, rec.Body.String(), "You have admin access")
}
