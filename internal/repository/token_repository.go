package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/identity-service/internal/model"
)

// TokenRepo is the refresh token ledger.  Only SHA-256 hashes of tokens are
// stored, in the unique token_hash column.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts an unrevoked row for tokenHash.
func (r *TokenRepo) Store(ctx context.Context, userID, tokenHash string, exp, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, revoked, created_at) VALUES (?,?,?,0,?)",
		userID, tokenHash, exp, now)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// GetByHash returns the ledger row for tokenHash or ErrNotFound.
func (r *TokenRepo) GetByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, revoked, revoked_at, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &revokedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if revokedAt.Valid {
		ts := revokedAt.Time
		t.RevokedAt = &ts
	}
	return &t, nil
}

// Rotate revokes oldHash and stores newHash in one transaction.  The revoke
// is a compare-and-set on revoked=0 and expires_at>now; if it matches no
// row the transaction is rolled back and ErrTokenRevoked returned, so of two
// concurrent rotations of the same token exactly one commits.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash, userID, newHash string, newExp, now time.Time) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1, revoked_at=? WHERE token_hash=? AND user_id=? AND revoked=0 AND expires_at>?",
		now, oldHash, userID, now)
	if err != nil {
		return fmt.Errorf("revoke old refresh token: %w", err)
	}
	if err = expectOne(res, ErrTokenRevoked); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, revoked, created_at) VALUES (?,?,?,0,?)",
		userID, newHash, newExp, now); err != nil {
		return fmt.Errorf("store rotated refresh token: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	return nil
}

// RevokeByHash marks one token revoked.  It reports whether a live row was
// changed.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1, revoked_at=? WHERE token_hash=? AND revoked=0",
		now, tokenHash)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// RevokeAllForUser revokes every unrevoked token of userID and returns how
// many rows changed.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1, revoked_at=? WHERE user_id=? AND revoked=0",
		now, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
