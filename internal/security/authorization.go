package security

import (
	"errors"
	"sort"

	"github.com/aryan0dhankhar/orderme/internal/domain"
	"github.com/aryan0dhankhar/orderme/internal/security/auth"
)

var ErrEmptyRequirement = errors.New("role requirement needs at least one role")

// RoleRequirement is the fixed set of roles allowed to perform an operation.
// Membership is flat: no role implies another.
type RoleRequirement struct {
	roles map[domain.Role]struct{}
}

// NewRoleRequirement builds a requirement from the allowed roles.
func NewRoleRequirement(roles ...domain.Role) (RoleRequirement, error) {
	if len(roles) == 0 {
		return RoleRequirement{}, ErrEmptyRequirement
	}
	set := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return RoleRequirement{roles: set}, nil
}

// MustRoleRequirement is NewRoleRequirement for package-level values.
func MustRoleRequirement(roles ...domain.Role) RoleRequirement {
	req, err := NewRoleRequirement(roles...)
	if err != nil {
		panic(err)
	}
	return req
}

// Requirements used by the user routes.
var (
	RequireCustomer      = MustRoleRequirement(domain.RoleCustomer)
	RequireTenantAdmin   = MustRoleRequirement(domain.RoleTenantAdmin)
	RequirePlatformAdmin = MustRoleRequirement(domain.RolePlatformAdmin)
	RequireAdmin         = MustRoleRequirement(domain.RoleTenantAdmin, domain.RolePlatformAdmin)
)

func (r RoleRequirement) Allows(role domain.Role) bool {
	_, ok := r.roles[role]
	return ok
}

// Roles returns the allowed roles in sorted order.
func (r RoleRequirement) Roles() []domain.Role {
	out := make([]domain.Role, 0, len(r.roles))
	for role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Authorize returns user unchanged when its role is in req, otherwise
// auth.ErrForbidden.
func Authorize(user *domain.User, req RoleRequirement) (*domain.User, error) {
	if user == nil || !req.Allows(user.Role) {
		return nil, auth.ErrForbidden
	}
	return user, nil
}
