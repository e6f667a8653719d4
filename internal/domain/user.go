package domain

import (
	"context"
	"time"
)

// Role is a flat authorization tag carried by a user and embedded in tokens.
type Role string

const (
	RoleCustomer      Role = "customer"
	RoleTenantAdmin   Role = "tenant_admin"
	RolePlatformAdmin Role = "platform_admin"
)

// DefaultRole is assigned to every self-registered account.
const DefaultRole = RoleCustomer

// User represents an account scoped to a tenant
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PhoneNumber  *string    `json:"phone_number,omitempty"`
	PasswordHash string     `json:"-"`
	TenantID     int64      `json:"tenant_id"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// UserRepository defines data access for users.
// Lookups return ErrUserNotFound when no row matches.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	// Insert assigns ID and CreatedAt and returns the stored record.
	Insert(ctx context.Context, user *User) (*User, error)
}
