package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names written by the login flow.
const (
	ClaimSubject  = "sub"
	ClaimEmail    = "email"
	ClaimTenantID = "tenant_id"
	ClaimRole     = "role"
	ClaimExpiry   = "exp"
)

var signingMethods = map[string]*jwt.SigningMethodHMAC{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// SupportedAlgorithm reports whether alg can be used to sign tokens.
func SupportedAlgorithm(alg string) bool {
	_, ok := signingMethods[alg]
	return ok
}

// TokenConfig holds the process-wide signing settings.
type TokenConfig struct {
	Secret     string
	Algorithm  string
	DefaultTTL time.Duration
}

// Claims is the decoded content of a valid token.
type Claims struct {
	Subject   string
	Email     string
	TenantID  int64
	Role      string
	ExpiresAt time.Time

	// Values holds every entry of the token, exp included.
	// JSON integers decode to int64.
	Values map[string]any
}

// UserID parses the subject as a user identifier.
func (c *Claims) UserID() (int64, error) {
	if c.Subject == "" {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// TokenCodec issues and parses signed, expiring tokens.
type TokenCodec struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	defaultTTL time.Duration
	now        func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

func NewTokenCodec(cfg TokenConfig, opts ...CodecOption) (*TokenCodec, error) {
	if cfg.Secret == "" {
		return nil, ErrEmptySecret
	}
	method, ok := signingMethods[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}
	if cfg.DefaultTTL < time.Second {
		return nil, fmt.Errorf("%w: default is %s", ErrInvalidTTL, cfg.DefaultTTL)
	}

	c := &TokenCodec{
		secret:     []byte(cfg.Secret),
		method:     method,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *TokenCodec) Algorithm() string { return c.method.Alg() }

func (c *TokenCodec) DefaultTTL() time.Duration { return c.defaultTTL }

// Issue signs payload with an exp claim of now+ttl. A zero ttl selects the
// configured default. Any exp already present in payload is replaced.
func (c *TokenCodec) Issue(payload map[string]any, ttl time.Duration) (string, error) {
	if sub, _ := payload[ClaimSubject].(string); sub == "" {
		return "", ErrMissingSubject
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl < time.Second {
		return "", fmt.Errorf("%w: got %s", ErrInvalidTTL, ttl)
	}

	claims := make(jwt.MapClaims, len(payload)+1)
	for k, v := range payload {
		claims[k] = v
	}
	claims[ClaimExpiry] = jwt.NewNumericDate(c.now().Add(ttl))

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry of tokenString. It returns
// ErrTokenExpired or ErrInvalidToken and nothing else.
func (c *TokenCodec) Parse(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		jwt.WithJSONNumber(),
		jwt.WithStrictDecoding(),
	)

	raw := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(tokenString, raw, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, err := claimsFromMap(raw)
	if err != nil {
		return nil, err
	}
	// jwt treats the exp instant itself as still valid.
	if !c.now().Before(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

func claimsFromMap(raw jwt.MapClaims) (*Claims, error) {
	exp, err := raw.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	values := make(map[string]any, len(raw))
	for k, v := range raw {
		values[k] = normalizeNumbers(v)
	}

	claims := &Claims{ExpiresAt: exp.Time, Values: values}
	claims.Subject, _ = values[ClaimSubject].(string)
	claims.Email, _ = values[ClaimEmail].(string)
	claims.Role, _ = values[ClaimRole].(string)
	claims.TenantID, _ = values[ClaimTenantID].(int64)
	return claims, nil
}

func normalizeNumbers(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case map[string]any:
		for k, inner := range n {
			n[k] = normalizeNumbers(inner)
		}
		return n
	case []any:
		for i, inner := range n {
			n[i] = normalizeNumbers(inner)
		}
		return n
	default:
		return v
	}
}

// ExtractBearer returns the token from an "Authorization: Bearer <token>" header.
func ExtractBearer(authHeader string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrMissingBearer
	}
	return token, nil
}
