package auth

import (
	"context"

	"github.com/hfurst/taskpay/internal/model"
)

type contextKey struct{}

// Identity is the verified actor attached to a request by the auth
// middleware. Handlers trust it completely; credential checks happen once
// at the middleware boundary.
type Identity struct {
	UserID int64
	Role   string
}

func (id Identity) IsAdmin() bool {
	return id.Role == model.RoleAdmin
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// MustIdentity returns the identity or a zero value. Only protected routes
// call this, so the zero value is never authorized for anything.
func MustIdentity(ctx context.Context) Identity {
	id, _ := FromContext(ctx)
	return id
}
