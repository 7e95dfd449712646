package user

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated caller attached to every request.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// DeriveID produces a stable user identifier from an email address so that
// api-key authenticated callers keep the same identity across restarts.
func DeriveID(email string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(email))
}

type contextKey struct{}

// NewContext attaches the identity to the request context.
func NewContext(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// FromContext retrieves the identity stored by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}
