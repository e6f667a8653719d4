package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/aryan0dhankhar/orderme/internal/domain"
	"github.com/aryan0dhankhar/orderme/internal/observability/metrics"
	"github.com/aryan0dhankhar/orderme/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/orderme/pkg/cache"
)

// UserCache stores serialized users. Redis and LocalCache implement it.
type UserCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// LocalCache adapts the in-process TTL cache to UserCache.
type LocalCache struct {
	c *cache.Cache[[]byte]
}

func NewLocalCache(maxEntries int) *LocalCache {
	return &LocalCache{c: cache.New[[]byte](cache.WithMaxEntries(maxEntries))}
}

func (l *LocalCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.c.Get(key)
	return v, ok, nil
}

func (l *LocalCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	l.c.Set(key, value, ttl)
	return nil
}

func (l *LocalCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		l.c.Delete(k)
	}
	return nil
}

// cachedUser is the cached form of domain.User. The password hash is never
// cached; FindByEmail, the only path that verifies passwords, bypasses the cache.
type cachedUser struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	PhoneNumber *string    `json:"phone_number,omitempty"`
	TenantID    int64      `json:"tenant_id"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// CachedUserRepository serves FindByID from a cache in front of another
// repository. Cache errors never fail a lookup; repeated errors open the
// breaker and lookups go straight to the backing store.
type CachedUserRepository struct {
	next    domain.UserRepository
	cache   UserCache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCachedUserRepository(next domain.UserRepository, c UserCache, ttl time.Duration, logger *slog.Logger) *CachedUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	breaker := circuitbreaker.NewCircuitBreaker(5, 1, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		metrics.SetCacheBreakerOpen(to == circuitbreaker.StateOpen)
		logger.Warn("user cache breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &CachedUserRepository{
		next:    next,
		cache:   c,
		breaker: breaker,
		ttl:     ttl,
		logger:  logger,
	}
}

func userKey(id int64) string {
	return "user:id:" + strconv.FormatInt(id, 10)
}

func (r *CachedUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	key := userKey(id)
	if user, ok := r.lookup(ctx, key); ok {
		return user, nil
	}

	user, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, user)
	return user, nil
}

func (r *CachedUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.next.FindByEmail(ctx, email)
}

func (r *CachedUserRepository) Insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	return r.next.Insert(ctx, user)
}

// Forget drops the cached copy of a user. Code that changes a user's role or
// active flag calls it so the change is seen before the entry expires.
func (r *CachedUserRepository) Forget(ctx context.Context, id int64) error {
	return r.cache.Delete(ctx, userKey(id))
}

func (r *CachedUserRepository) lookup(ctx context.Context, key string) (*domain.User, bool) {
	if !r.breaker.AllowRequest() {
		metrics.ObserveUserCache("bypass")
		return nil, false
	}

	data, found, err := r.cache.Get(ctx, key)
	if err != nil {
		r.breaker.RecordFailure()
		metrics.ObserveUserCache("error")
		r.logger.Warn("user cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	r.breaker.RecordSuccess()

	if !found {
		metrics.ObserveUserCache("miss")
		return nil, false
	}

	var cu cachedUser
	if err := json.Unmarshal(data, &cu); err != nil {
		metrics.ObserveUserCache("error")
		r.logger.Warn("dropping undecodable cache entry", slog.String("key", key), slog.String("error", err.Error()))
		_ = r.cache.Delete(ctx, key)
		return nil, false
	}

	metrics.ObserveUserCache("hit")
	return &domain.User{
		ID:          cu.ID,
		Email:       cu.Email,
		PhoneNumber: cu.PhoneNumber,
		TenantID:    cu.TenantID,
		Role:        domain.Role(cu.Role),
		IsActive:    cu.IsActive,
		CreatedAt:   cu.CreatedAt,
		UpdatedAt:   cu.UpdatedAt,
	}, true
}

func (r *CachedUserRepository) store(ctx context.Context, key string, user *domain.User) {
	if !r.breaker.AllowRequest() {
		return
	}
	data, err := json.Marshal(cachedUser{
		ID:          user.ID,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		TenantID:    user.TenantID,
		Role:        string(user.Role),
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.breaker.RecordFailure()
		r.logger.Warn("user cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	r.breaker.RecordSuccess()
}
