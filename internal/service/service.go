// Package service holds the account use cases: registration, activation,
// login, token refresh and logout, plus profile management.  Services return
// *apperror.AppError values for every client-visible failure.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/identity-service/internal/model"
	"github.com/iliyamo/identity-service/internal/repository"
)

// UserStore is the credential store as seen by the services.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdatePending(ctx context.Context, id, passwordHash, fullName string, now time.Time) error
	Activate(ctx context.Context, id string, now time.Time) error
	UpdateProfile(ctx context.Context, id string, p repository.ProfileUpdate, now time.Time) error
}

// TokenStore is the persistence side of the refresh token ledger.
type TokenStore interface {
	Store(ctx context.Context, userID, tokenHash string, exp, now time.Time) error
	GetByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Rotate(ctx context.Context, oldHash, userID, newHash string, newExp, now time.Time) error
	RevokeByHash(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

// OTPDelivery hands an activation code to the mail side.  It must not block
// the request; delivery failures are the implementation's to log.
type OTPDelivery interface {
	DeliverOTP(email, fullName, code string)
}

// TokenPair is what login and refresh return to the client.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

func systemNow() time.Time { return time.Now().UTC() }
