package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aryan0dhankhar/orderme/internal/domain"
)

// UserLookup is the read side of the user store needed to resolve tokens.
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

// IdentityResolver turns a bearer token into the user it was issued to.
type IdentityResolver struct {
	codec *TokenCodec
	users UserLookup
}

func NewIdentityResolver(codec *TokenCodec, users UserLookup) *IdentityResolver {
	return &IdentityResolver{codec: codec, users: users}
}

// Resolve parses token and loads its subject. Unknown subjects are reported
// as ErrInvalidToken so callers cannot probe which ids exist. Store failures
// other than not-found are returned wrapped.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (*domain.User, error) {
	claims, err := r.codec.Parse(token)
	if err != nil {
		return nil, err
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := r.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup user %d: %w", id, err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// RequireActive passes user through unless the account is disabled.
// A nil user has no identity and is ErrInvalidToken.
func RequireActive(user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}
	return user, nil
}
