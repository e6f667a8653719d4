package repository

import (
	"context"
	"sync"
	"time"

	"github.com/aryan0dhankhar/orderme/internal/domain"
)

// MemoryUserRepository keeps users in process memory. It backs tests and
// DATABASE_URL=memory development runs.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*domain.User
	byEmail map[string]int64
	now     func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		nextID:  1,
		byID:    make(map[int64]*domain.User),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

func (r *MemoryUserRepository) Insert(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return nil, domain.ErrDuplicateEmail
	}

	stored := *user
	stored.ID = r.nextID
	stored.CreatedAt = r.now().UTC()
	r.nextID++

	r.byID[stored.ID] = &stored
	r.byEmail[stored.Email] = stored.ID

	out := stored
	return &out, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

// SetActive flips the active flag of an existing user.
func (r *MemoryUserRepository) SetActive(id int64, active bool) error {
	return r.update(id, func(u *domain.User) { u.IsActive = active })
}

// SetRole changes the role of an existing user.
func (r *MemoryUserRepository) SetRole(id int64, role domain.Role) error {
	return r.update(id, func(u *domain.User) { u.Role = role })
}

// Len counts stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryUserRepository) update(id int64, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(user)
	now := r.now().UTC()
	user.UpdatedAt = &now
	return nil
}
