package identity

import (
	"context"
	"strings"
)

// Identity is an authenticated user as reported by the identity provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Username is the name shown on new posts: the display name, else the email
// local part, else "User".
func (i Identity) Username() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(i.Email, "@"); ok && local != "" {
		return local
	}
	if i.Email != "" {
		return i.Email
	}
	return "User"
}

// Provider reports the identity acting in the given context.
type Provider interface {
	Current(ctx context.Context) (*Identity, bool)
}

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}

// RequestProvider reads the identity that authentication middleware attached
// to the request context.
type RequestProvider struct{}

func (RequestProvider) Current(ctx context.Context) (*Identity, bool) {
	return FromContext(ctx)
}

// Static always reports the same identity, or none when ID is nil.
type Static struct {
	ID *Identity
}

func (s Static) Current(context.Context) (*Identity, bool) {
	if s.ID == nil {
		return nil, false
	}
	return s.ID, true
}
