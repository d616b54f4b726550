package middleware

import (
	"errors"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-service/internal/ratelimit"
)

var authLimitedPaths = []string{
	"/auth/login",
	"/auth/register",
	"/auth/resend-otp",
	"/auth/activate",
}

var uploadLimitedPaths = []string{"/upload/**"}

// RateLimit applies the GLOBAL class to every request, then AUTH, UPLOAD
// and API to the requests whose path falls in that class.  A blocked
// request ends with a 429 envelope and a Retry-After header.
func RateLimit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := ratelimit.ClientIdentifier(req)
			path := req.URL.Path

			classes := []ratelimit.Class{ratelimit.Global}
			if matchAny(authLimitedPaths, path) {
				classes = append(classes, ratelimit.Auth)
			}
			if matchAny(uploadLimitedPaths, path) {
				classes = append(classes, ratelimit.Upload)
			}
			if matchAny(l.APIPaths(), path) {
				classes = append(classes, ratelimit.API)
			}

			for _, class := range classes {
				if err := l.CheckAndThrow(req.Context(), class, id); err != nil {
					var ex *ratelimit.ExceededError
					if errors.As(err, &ex) {
						secs := int(ex.RetryAfter().Seconds())
						c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
					}
					return err
				}
			}
			return next(c)
		}
	}
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}
