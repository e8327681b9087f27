package authz

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"guardian/internal/domain"
)

const (
	ScopeAccess  = "access"
	ScopeRefresh = "refresh"
)

type AccessClaims struct {
	SID   string      `json:"sid"`
	Role  domain.Role `json:"role"`
	Scope string      `json:"scope"`
	jwt.RegisteredClaims
}

// RefreshClaims binds a refresh JWT to a session row: jti == Session.RefreshID.
type RefreshClaims struct {
	SID   string `json:"sid"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	AccountID domain.AccountID
	Role      domain.Role
	SessionID domain.SessionID
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
