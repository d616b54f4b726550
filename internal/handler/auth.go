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

const defaultTimeout = 5 * time.Second

// AuthHandler bundles dependencies for the /auth endpoints.
type AuthHandler struct {
	Auth    *service.AuthService
	Timeout time.Duration
}

func NewAuthHandler(auth *service.AuthService, timeout time.Duration) *AuthHandler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AuthHandler{Auth: auth, Timeout: timeout}
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// Register: POST /auth/register.  Creates a PENDING account and mails an OTP.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.RegisterInput{Email: req.Email, Password: req.Password, FullName: req.FullName})
	if err != nil {
		return err
	}
	return response.Created(c, "User registered successfully", echo.Map{"email": u.Email, "status": string(u.Status)})
}

// Login: POST /auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return response.OK(c, "Login successful", loginResp{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
		User:             toUserResp(res.User),
	})
}

// Refresh: POST /auth/refresh-token.  The presented token is consumed.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return response.OK(c, "Token refreshed successfully", pair)
}

// Logout: DELETE /auth/logout.  Revokes every refresh token of the caller.
func (h *AuthHandler) Logout(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return apperror.Unauthorized("Authentication required")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, p.UserID); err != nil {
		return err
	}
	return response.OK(c, "Logged out successfully", nil)
}

// ResendOTP: POST /auth/resend-otp.
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req resendOTPReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Auth.ResendOTP(ctx, req.Email); err != nil {
		return err
	}
	return response.OK(c, "OTP sent successfully", nil)
}

// Activate: POST /auth/activate.
func (h *AuthHandler) Activate(c echo.Context) error {
	var req activateReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Auth.Activate(ctx, req.Email, req.OTP); err != nil {
		return err
	}
	return response.OK(c, "Account activated successfully", nil)
}
