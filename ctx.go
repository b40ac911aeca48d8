package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by the session middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// IdentityFromContext returns the identity key bound for provider in the
// session claims carried by ctx.
func IdentityFromContext(ctx context.Context, provider string) (string, bool) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return "", false
	}
	id, ok := claims.Identities()[provider]
	return id, ok
}

// GetRouterSession decodes the session claims stored under key
func GetRouterSession(ctx router.Context, key string) (Session, bool) {
	claims, ok := GetRouterClaims(ctx, key)
	if !ok {
		return nil, false
	}
	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		return nil, false
	}
	return session, true
}
