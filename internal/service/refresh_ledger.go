package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/identity-service/internal/apperror"
	"github.com/iliyamo/identity-service/internal/model"
	"github.com/iliyamo/identity-service/internal/repository"
	"github.com/iliyamo/identity-service/internal/utils"
)

const msgRefreshUnusable = "Refresh token is expired or revoked"

// RefreshLedger issues refresh tokens, records them, and rotates them so
// that each token is exchanged at most once.
type RefreshLedger struct {
	tokens TokenStore
	users  UserStore
	issuer *utils.TokenIssuer
	now    func() time.Time
}

func NewRefreshLedger(tokens TokenStore, users UserStore, issuer *utils.TokenIssuer, now func() time.Time) *RefreshLedger {
	if now == nil {
		now = systemNow
	}
	return &RefreshLedger{tokens: tokens, users: users, issuer: issuer, now: now}
}

// IssueAndStore mints a refresh token for u and records its hash.
func (l *RefreshLedger) IssueAndStore(ctx context.Context, u *model.User) (utils.Token, error) {
	tok, err := l.issuer.IssueRefreshToken(u)
	if err != nil {
		return utils.Token{}, apperror.Internal("Could not issue tokens", err)
	}
	if err := l.tokens.Store(ctx, u.ID, utils.HashToken(tok.Value), tok.ExpiresAt, l.now()); err != nil {
		return utils.Token{}, apperror.Internal("Could not issue tokens", err)
	}
	return tok, nil
}

// IssuePair mints an access token and a stored refresh token for u.
func (l *RefreshLedger) IssuePair(ctx context.Context, u *model.User) (TokenPair, error) {
	access, err := l.issuer.IssueAccessToken(u)
	if err != nil {
		return TokenPair{}, apperror.Internal("Could not issue tokens", err)
	}
	refresh, err := l.IssueAndStore(ctx, u)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access.Value,
		RefreshToken:     refresh.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Rotate exchanges raw for a fresh pair.  Unknown tokens are 404; revoked,
// expired or concurrently consumed tokens are 400, as is a token whose owner
// is no longer active.  Old revoke and new insert commit together.
func (l *RefreshLedger) Rotate(ctx context.Context, raw string) (TokenPair, error) {
	hash := utils.HashToken(raw)
	row, err := l.tokens.GetByHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, apperror.NotFound("Refresh token not found")
	}
	if err != nil {
		return TokenPair{}, apperror.Internal("Internal server error", err)
	}
	now := l.now()
	if !row.Usable(now) {
		return TokenPair{}, apperror.BadRequest(msgRefreshUnusable)
	}

	u, err := l.users.GetByID(ctx, row.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, apperror.NotFound("User not found")
	}
	if err != nil {
		return TokenPair{}, apperror.Internal("Internal server error", err)
	}
	if !u.Status.CanAuthenticate() {
		return TokenPair{}, apperror.BadRequest("Account is not active")
	}
	if !l.issuer.Validate(raw, u.Email) {
		return TokenPair{}, apperror.BadRequest("Invalid refresh token")
	}

	access, err := l.issuer.IssueAccessToken(u)
	if err != nil {
		return TokenPair{}, apperror.Internal("Could not issue tokens", err)
	}
	refresh, err := l.issuer.IssueRefreshToken(u)
	if err != nil {
		return TokenPair{}, apperror.Internal("Could not issue tokens", err)
	}
	err = l.tokens.Rotate(ctx, hash, u.ID, utils.HashToken(refresh.Value), refresh.ExpiresAt, now)
	if errors.Is(err, repository.ErrTokenRevoked) {
		return TokenPair{}, apperror.BadRequest(msgRefreshUnusable)
	}
	if err != nil {
		return TokenPair{}, apperror.Internal("Internal server error", err)
	}
	return TokenPair{
		AccessToken:      access.Value,
		RefreshToken:     refresh.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// RevokeAll revokes every live refresh token of userID.
func (l *RefreshLedger) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := l.tokens.RevokeAllForUser(ctx, userID, l.now())
	if err != nil {
		return 0, apperror.Internal("Internal server error", err)
	}
	return n, nil
}

// Revoke revokes a single refresh token; it reports whether it was live.
func (l *RefreshLedger) Revoke(ctx context.Context, raw string) (bool, error) {
	ok, err := l.tokens.RevokeByHash(ctx, utils.HashToken(raw), l.now())
	if err != nil {
		return false, apperror.Internal("Internal server error", err)
	}
	return ok, nil
}
