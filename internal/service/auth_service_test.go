package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/orderme/internal/domain"
	"github.com/aryan0dhankhar/orderme/internal/repository"
	"github.com/aryan0dhankhar/orderme/internal/security/auth"
)

func newTestService(t *testing.T, users domain.UserRepository) (*AuthService, *auth.TokenCodec) {
	t.Helper()
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:     "test-secret",
		Algorithm:  "HS256",
		DefaultTTL: 30 * time.Minute,
	})
	require.NoError(t, err)
	return NewAuthService(users, auth.NewPasswordHasher(bcrypt.MinCost), codec, nil, nil), codec
}

func signup(t *testing.T, s *AuthService, email, password string, tenant int64) *domain.User {
	t.Helper()
	u, err := s.Signup(context.Background(), SignupInput{Email: email, Password: password, TenantID: tenant})
	require.NoError(t, err)
	return u
}

func TestSignup_CreatesActiveCustomer(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, _ := newTestService(t, repo)

	u := signup(t, s, "a@x.com", "pw123456", 1)

	assert.Equal(t, 1, repo.Len())
	stored, err := repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, stored.Role)
	assert.True(t, stored.IsActive)
	assert.Equal(t, int64(1), stored.TenantID)
	assert.NotEqual(t, "pw123456", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestSignup_NormalizesEmailAndKeepsPhone(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, _ := newTestService(t, repo)
	phone := "+15550100"

	u, err := s.Signup(context.Background(), SignupInput{
		Email:       "  Alice@Example.COM ",
		Password:    "pw123456",
		PhoneNumber: &phone,
		TenantID:    7,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	require.NotNil(t, u.PhoneNumber)
	assert.Equal(t, phone, *u.PhoneNumber)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, _ := newTestService(t, repo)

	signup(t, s, "a@x.com", "pw123456", 1)
	_, err := s.Signup(context.Background(), SignupInput{Email: "A@x.com", Password: "other", TenantID: 2})

	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	assert.Equal(t, 1, repo.Len())
}

func TestSignup_HashingFailure(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, _ := newTestService(t, repo)

	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	_, err := s.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: string(long), TenantID: 1})

	assert.ErrorIs(t, err, auth.ErrHashingFailure)
	assert.Equal(t, 0, repo.Len())
}

func TestSignup_RaceOnInsertIsDuplicate(t *testing.T) {
	s, _ := newTestService(t, &racingRepo{MemoryUserRepository: repository.NewMemoryUserRepository()})

	_, err := s.Signup(context.Background(), SignupInput{Email: "a@x.com", Password: "pw123456", TenantID: 1})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestLogin_IssuesTokenForUser(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, codec := newTestService(t, repo)
	u := signup(t, s, "a@x.com", "pw123456", 3)

	iss, err := s.Login(context.Background(), "a@x.com", "pw123456")
	require.NoError(t, err)

	assert.Equal(t, TokenTypeBearer, iss.TokenType)
	assert.Equal(t, u.ID, iss.UserID)
	assert.Equal(t, int64(3), iss.TenantID)
	assert.Equal(t, string(domain.RoleCustomer), iss.Role)
	assert.Equal(t, int64(1800), iss.ExpiresIn)

	claims, err := codec.Parse(iss.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(u.ID, 10), claims.Subject)
	assert.Equal(t, string(u.Role), claims.Role)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, int64(3), claims.TenantID)
}

func TestLogin_TokenCarriesCurrentRole(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, codec := newTestService(t, repo)
	u := signup(t, s, "admin@x.com", "pw123456", 1)
	require.NoError(t, repo.SetRole(u.ID, domain.RoleTenantAdmin))

	iss, err := s.Login(context.Background(), "admin@x.com", "pw123456")
	require.NoError(t, err)

	claims, err := codec.Parse(iss.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, string(domain.RoleTenantAdmin), claims.Role)
	assert.Equal(t, string(domain.RoleTenantAdmin), iss.Role)
}

func TestLogin_InactiveAccount(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, _ := newTestService(t, repo)
	u := signup(t, s, "a@x.com", "pw123456", 1)
	require.NoError(t, repo.SetActive(u.ID, false))

	iss, err := s.Login(context.Background(), "a@x.com", "pw123456")

	assert.ErrorIs(t, err, auth.ErrInactiveAccount)
	assert.Nil(t, iss)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, _ := newTestService(t, repo)
	signup(t, s, "a@x.com", "pw123456", 1)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "a@x.com", "nope"},
		{"unknown email", "b@x.com", "pw123456"},
		{"empty password", "a@x.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss, err := s.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
			assert.Nil(t, iss)
		})
	}
}

func TestLogin_SuffixBeyondBcryptLimitIsInvalidCredentials(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, _ := newTestService(t, repo)
	full := strings.Repeat("p", auth.MaxPasswordBytes)
	signup(t, s, "a@x.com", full, 1)

	iss, err := s.Login(context.Background(), "a@x.com", full+"junk")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Nil(t, iss)
}

func TestLogin_InactiveWithWrongPasswordIsInvalidCredentials(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	s, _ := newTestService(t, repo)
	u := signup(t, s, "a@x.com", "pw123456", 1)
	require.NoError(t, repo.SetActive(u.ID, false))

	_, err := s.Login(context.Background(), "a@x.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_StoreFailureIsNotAnAuthKind(t *testing.T) {
	boom := errors.New("connection refused")
	s, _ := newTestService(t, failingRepo{err: boom})

	_, err := s.Login(context.Background(), "a@x.com", "pw123456")

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com\n"))
}

// racingRepo reports no existing user but then loses the insert race.
type racingRepo struct {
	*repository.MemoryUserRepository
}

func (r *racingRepo) Insert(context.Context, *domain.User) (*domain.User, error) {
	return nil, domain.ErrDuplicateEmail
}

type failingRepo struct {
	err error
}

func (f failingRepo) FindByEmail(context.Context, string) (*domain.User, error) { return nil, f.err }
func (f failingRepo) FindByID(context.Context, int64) (*domain.User, error) { return nil, f.err }
func (f failingRepo) Insert(context.Context, *domain.User) (*domain.User, error) {
	return nil, f.err
}
