package handler

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-service/internal/apperror"
	"github.com/iliyamo/identity-service/internal/ratelimit"
	"github.com/iliyamo/identity-service/internal/response"
	"github.com/iliyamo/identity-service/internal/service"
)

// AdminHandler exposes session and rate-limit maintenance.  Authorization
// is enforced by the route guards, not here.
type AdminHandler struct {
	Users   *service.UserService
	Limiter *ratelimit.Limiter
	Timeout time.Duration
}

func NewAdminHandler(users *service.UserService, limiter *ratelimit.Limiter, timeout time.Duration) *AdminHandler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AdminHandler{Users: users, Limiter: limiter, Timeout: timeout}
}

func (h *AdminHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// RevokeSessions: DELETE /admin/users/:id/sessions
func (h *AdminHandler) RevokeSessions(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return apperror.BadRequest("User id is required")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	n, err := h.Users.RevokeSessions(ctx, id)
	if err != nil {
		return err
	}
	return response.OK(c, "Sessions revoked", echo.Map{"userId": id, "revoked": n})
}

func classParam(c echo.Context) (ratelimit.Class, string, error) {
	class, ok := ratelimit.ParseClass(c.Param("class"))
	if !ok {
		return "", "", apperror.BadRequest("Unknown rate limit class")
	}
	id := strings.TrimSpace(c.Param("identifier"))
	if id == "" {
		return "", "", apperror.BadRequest("Identifier is required")
	}
	return class, id, nil
}

type windowStatus struct {
	Limit     int   `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// RateLimitStatus: GET /admin/rate-limits/:class/:identifier
func (h *AdminHandler) RateLimitStatus(c echo.Context) error {
	class, id, err := classParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	lim := h.Limiter.Limits(class)
	limits := map[string]int{"minute": lim.PerMinute, "hour": lim.PerHour, "day": lim.PerDay}
	windows := make(map[string]windowStatus, len(ratelimit.Windows))
	for _, w := range ratelimit.Windows {
		rem, err := h.Limiter.Remaining(ctx, class, w.Name, id)
		if err != nil {
			return apperror.Internal("Could not read rate limit counters", err)
		}
		windows[w.Name] = windowStatus{Limit: limits[w.Name], Remaining: rem}
	}
	return response.OK(c, "Rate limit status", echo.Map{
		"class":      string(class),
		"identifier": id,
		"enabled":    lim.Enabled,
		"windows":    windows,
	})
}

// ResetRateLimit: DELETE /admin/rate-limits/:class/:identifier
func (h *AdminHandler) ResetRateLimit(c echo.Context) error {
	class, id, err := classParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Limiter.Reset(ctx, class, id); err != nil {
		return apperror.Internal("Could not reset rate limit counters", err)
	}
	return response.OK(c, "Rate limit reset", echo.Map{"class": string(class), "identifier": id})
}
