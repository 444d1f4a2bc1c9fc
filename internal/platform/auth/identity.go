package auth

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Identity captures the authenticated shopper details extracted from a
// Firebase ID token. Requests without a verified token carry no identity and
// are treated as guest sessions.
type Identity struct {
	UID         string
	Email       string
	DisplayName string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token associated with this identity.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// IsZero reports whether the identity carries no usable subject.
func (i *Identity) IsZero() bool {
	return i == nil || strings.TrimSpace(i.UID) == ""
}

type contextKey string

const identityContextKey contextKey = "github.com/gearstore/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity.IsZero() {
		return nil, false
	}
	return identity, true
}
