package auth

import "errors"

// Failure kinds returned to the transport layer. Callers compare with errors.Is.
//
// ErrInvalidToken covers malformed tokens, bad signatures, foreign algorithms
// and subjects that do not resolve to a user.
var (
	ErrHashingFailure     = errors.New("password hashing failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("inactive user")
	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidToken       = errors.New("could not validate credentials")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrMissingBearer      = errors.New("not authenticated")
)

// Construction and issuance errors.
var (
	ErrEmptySecret          = errors.New("token secret must not be empty")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrInvalidTTL           = errors.New("token ttl must be at least one second")
	ErrMissingSubject       = errors.New("token payload requires a non-empty sub")
)
