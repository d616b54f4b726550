package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Each refresh
// token belongs to a user and is single use: rotation, logout or an
// administrative revoke flips Revoked, which never flips back.  The plain
// token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	Revoked   bool       // refresh_tokens.revoked
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

// Usable reports whether the token may still be exchanged at now.  Expiry is
// evaluated here at read time; there is no background expiry job.
func (t RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
