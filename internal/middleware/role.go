package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-service/internal/apperror"
	"github.com/iliyamo/identity-service/internal/model"
)

// RequireAuth rejects requests without a principal with 401.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := CurrentPrincipal(c); !ok {
				return apperror.Unauthorized("Authentication required")
			}
			return next(c)
		}
	}
}

// RequireRole admits principals holding one of roles.  A missing principal
// is 401, a wrong role 403.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := CurrentPrincipal(c)
			if !ok {
				return apperror.Unauthorized("Authentication required")
			}
			if !allowed[p.Role] {
				return apperror.Forbidden("Access denied")
			}
			return next(c)
		}
	}
}

// RequirePermission admits principals whose role grants every perm.
func RequirePermission(perms ...model.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := CurrentPrincipal(c)
			if !ok {
				return apperror.Unauthorized("Authentication required")
			}
			for _, perm := range perms {
				if !p.Has(perm) {
					return apperror.Forbidden("Access denied")
				}
			}
			return next(c)
		}
	}
}
