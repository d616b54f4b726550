package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/identity-service/internal/apperror"
	"github.com/iliyamo/identity-service/internal/metrics"
	"github.com/iliyamo/identity-service/internal/model"
	"github.com/iliyamo/identity-service/internal/repository"
	"github.com/iliyamo/identity-service/internal/utils"
)

// AuthConfig tunes AuthService.
type AuthConfig struct {
	BcryptCost   int
	BypassVerify bool // register accounts directly as ACTIVE
	Now          func() time.Time
}

// AuthService implements registration, activation, login, refresh and
// logout.
type AuthService struct {
	users  UserStore
	ledger *RefreshLedger
	issuer *utils.TokenIssuer
	otps   OTPStore
	mail   OTPDelivery
	cfg    AuthConfig
	log    *zap.Logger
}

func NewAuthService(users UserStore, ledger *RefreshLedger, issuer *utils.TokenIssuer, otps OTPStore,
	mail OTPDelivery, cfg AuthConfig, log *zap.Logger) *AuthService {
	if cfg.Now == nil {
		cfg.Now = systemNow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{users: users, ledger: ledger, issuer: issuer, otps: otps, mail: mail, cfg: cfg, log: log}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is a token pair plus the authenticated account.
type LoginResult struct {
	TokenPair
	User *model.User
}

// Register creates a PENDING account and sends an activation code.  An
// e-mail that belongs to an account past PENDING is a conflict; a PENDING
// account is overwritten so an abandoned registration can be retried.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (u *model.User, err error) {
	defer func() { metrics.AuthEvent("register", err) }()

	email := repository.NormalizeEmail(in.Email)
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperror.Internal("Internal server error", err)
	}
	now := s.cfg.Now()

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.Status != model.StatusPending:
		return nil, apperror.Conflict("Email already exists")
	case err == nil:
		if err := s.users.UpdatePending(ctx, existing.ID, hash, in.FullName, now); err != nil {
			if errors.Is(err, repository.ErrNotPending) {
				return nil, apperror.Conflict("Email already exists")
			}
			return nil, apperror.Internal("Internal server error", err)
		}
		existing.PasswordHash, existing.FullName, existing.UpdatedAt = hash, in.FullName, now
		u = existing
	case errors.Is(err, repository.ErrNotFound):
		u = &model.User{
			Email:        email,
			PasswordHash: hash,
			FullName:     in.FullName,
			Role:         model.RoleUser,
			Status:       model.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if s.cfg.BypassVerify {
			u.Status = model.StatusActive
		}
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrEmailExists) {
				return nil, apperror.Conflict("Email already exists")
			}
			return nil, apperror.Internal("Internal server error", err)
		}
	default:
		return nil, apperror.Internal("Internal server error", err)
	}

	if u.Status == model.StatusPending {
		if err := s.sendOTP(ctx, u); err != nil {
			// The account exists; the user can ask for a new code.
			s.log.Error("activation code not sent", zap.String("email", u.Email), zap.Error(err))
		}
	}
	return u, nil
}

// Login checks credentials and issues a token pair.  Unknown e-mail and
// wrong password share one message.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (res *LoginResult, err error) {
	defer func() { metrics.AuthEvent("login", err) }()

	u, err := s.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, apperror.Internal("Internal server error", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		return nil, apperror.Unauthorized("Invalid credentials")
	}
	if !u.Status.CanAuthenticate() {
		return nil, apperror.BadRequest("Account is not active")
	}
	pair, err := s.ledger.IssuePair(ctx, u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: pair, User: u}, nil
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	defer func() { metrics.AuthEvent("refresh", err) }()
	return s.ledger.Rotate(ctx, refreshToken)
}

// Logout revokes every refresh token of userID.  Access tokens stay valid
// until they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { metrics.AuthEvent("logout", err) }()
	n, err := s.ledger.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}
	s.log.Debug("refresh tokens revoked", zap.String("user_id", userID), zap.Int64("count", n))
	return nil
}

// ResendOTP issues a new activation code for a PENDING account.
func (s *AuthService) ResendOTP(ctx context.Context, email string) (err error) {
	defer func() { metrics.AuthEvent("resend_otp", err) }()

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("User not found")
	}
	if err != nil {
		return apperror.Internal("Internal server error", err)
	}
	if u.Status != model.StatusPending {
		return apperror.BadRequest("Account is already activated")
	}
	if err := s.sendOTP(ctx, u); err != nil {
		return apperror.Internal("Could not send activation code", err)
	}
	return nil
}

// Activate checks the code and flips the account to ACTIVE.  The code is
// deleted afterwards so it cannot be replayed.
func (s *AuthService) Activate(ctx context.Context, email, code string) (err error) {
	defer func() { metrics.AuthEvent("activate", err) }()

	if !utils.WellFormedOTP(code) {
		return apperror.BadRequest("OTP must be 6 digits")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("User not found")
	}
	if err != nil {
		return apperror.Internal("Internal server error", err)
	}
	if u.Status != model.StatusPending {
		return apperror.BadRequest("Account is already activated")
	}
	ok, err := s.otps.Verify(ctx, u.Email, code)
	if err != nil {
		return apperror.Internal("Internal server error", err)
	}
	if !ok {
		return apperror.BadRequest("Invalid or expired OTP")
	}
	if err := s.users.Activate(ctx, u.ID, s.cfg.Now()); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return apperror.BadRequest("Account is already activated")
		}
		return apperror.Internal("Internal server error", err)
	}
	if err := s.otps.Consume(ctx, u.Email); err != nil {
		s.log.Warn("activation code not deleted", zap.String("email", u.Email), zap.Error(err))
	}
	return nil
}

func (s *AuthService) sendOTP(ctx context.Context, u *model.User) error {
	code, err := utils.GenerateOTP()
	if err != nil {
		return err
	}
	if err := s.otps.Save(ctx, u.Email, code); err != nil {
		return err
	}
	if s.mail != nil {
		s.mail.DeliverOTP(u.Email, u.FullName, code)
	}
	return nil
}
