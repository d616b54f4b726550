package middleware

// identity.go defines the authenticated principal and how it travels with a
// request.  The gate stores it both in the request context.Context, so
// services can read it, and under the echo key "principal".

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-service/internal/model"
)

// Principal is the identity attached to an authenticated request.
type Principal struct {
	UserID      string
	Email       string
	Role        model.Role
	Authorities []string
}

// Has reports whether the principal's role grants p.
func (p *Principal) Has(perm model.Permission) bool { return p != nil && p.Role.Has(perm) }

type principalKey struct{}

const principalEchoKey = "principal"

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// CurrentPrincipal returns the principal of the request handled by c.
func CurrentPrincipal(c echo.Context) (*Principal, bool) {
	if p, ok := c.Get(principalEchoKey).(*Principal); ok && p != nil {
		return p, true
	}
	return PrincipalFrom(c.Request().Context())
}

func setPrincipal(c echo.Context, p *Principal) {
	c.Set(principalEchoKey, p)
	c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
}

// subject returns the authenticated e-mail or "guest".
func subject(c echo.Context) string {
	if p, ok := CurrentPrincipal(c); ok && p.Email != "" {
		return p.Email
	}
	return "guest"
}
