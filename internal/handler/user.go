package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-service/internal/apperror"
	"github.com/iliyamo/identity-service/internal/middleware"
	"github.com/iliyamo/identity-service/internal/response"
	"github.com/iliyamo/identity-service/internal/service"
)

// UserHandler serves the caller's own profile.
type UserHandler struct {
	Users   *service.UserService
	Timeout time.Duration
}

func NewUserHandler(users *service.UserService, timeout time.Duration) *UserHandler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &UserHandler{Users: users, Timeout: timeout}
}

func (h *UserHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// Me: GET /users/me
func (h *UserHandler) Me(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apperror.Unauthorized("Authentication required")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Users.Profile(ctx, p.UserID)
	if err != nil {
		return err
	}
	return response.OK(c, "User profile retrieved successfully", toUserResp(u))
}

// UpdateMe: PUT /users/me/update.  Empty fields keep their stored value.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apperror.Unauthorized("Authentication required")
	}
	var req updateProfileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, p.UserID, service.UpdateProfileInput{
		FullName:  req.FullName,
		Phone:     req.Phone,
		Address:   req.Address,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return err
	}
	return response.OK(c, "Profile updated successfully", toUserResp(u))
}
