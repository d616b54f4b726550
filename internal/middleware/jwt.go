package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/identity-service/internal/apperror"
	"github.com/iliyamo/identity-service/internal/model"
	"github.com/iliyamo/identity-service/internal/repository"
	"github.com/iliyamo/identity-service/internal/utils"
)

// UserLoader is the slice of the credential store the gate needs.
type UserLoader interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// GateConfig configures Authenticate.
type GateConfig struct {
	PublicPaths []string      // exact paths or doublestar patterns
	Timeout     time.Duration // budget for the user lookup
}

// Authenticate returns the authentication gate.  It does not reject a request
// for missing or bad credentials: it only attaches a Principal when the
// request carries a valid access token for an active account.  Rejection is
// left to RequireAuth and the role checks.  A failing credential store is
// the exception and surfaces as a 500.
//
// Per request:
//   - public path: skip
//   - no "Bearer " header: pass through
//   - subject cannot be extracted: pass through
//   - principal already attached: pass through
//   - otherwise load the user by subject; an unknown subject passes
//     through, any other lookup failure is a 500
//   - attach a principal if the token validates against that subject, is
//     an access token, and the account is ACTIVE
func Authenticate(issuer *utils.TokenIssuer, users UserLoader, cfg GateConfig, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if matchAny(cfg.PublicPaths, req.URL.Path) {
				return next(c)
			}
			auth := req.Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return next(c)
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			sub, err := issuer.ExtractSubject(raw)
			if err != nil || sub == "" {
				log.Debug("bearer token rejected", zap.Error(err))
				return next(c)
			}
			if _, ok := CurrentPrincipal(c); ok {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(req.Context(), cfg.Timeout)
			u, err := users.GetByEmail(ctx, sub)
			cancel()
			if errors.Is(err, repository.ErrNotFound) {
				log.Debug("token subject unknown", zap.String("sub", sub))
				return next(c)
			}
			if err != nil {
				return apperror.Internal("Internal server error", err)
			}
			if !issuer.Validate(raw, u.Email) {
				return next(c)
			}
			if typ, _ := issuer.ExtractClaim(raw, "typ"); typ != utils.TypeAccess {
				return next(c)
			}
			if !u.Status.CanAuthenticate() {
				return next(c)
			}

			setPrincipal(c, &Principal{
				UserID:      u.ID,
				Email:       u.Email,
				Role:        u.Role,
				Authorities: u.Role.Authorities(),
			})
			return next(c)
		}
	}
}
