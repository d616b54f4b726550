package utils // package utils provides helpers for token creation and hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/identity-service/internal/model"
)

// Token types carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrMalformedToken is returned by claim extraction when the token cannot be
// parsed or its signature does not verify.
var ErrMalformedToken = errors.New("malformed or invalid token")

// Claims is the payload of both access and refresh tokens.  Subject holds
// the user's e-mail.
type Claims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	Status string `json:"status"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// Token is a signed JWT along with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 tokens with a server-held secret.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer builds an issuer.  A nil now uses the wall clock in UTC.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL, now: now}
}

func (i *TokenIssuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccessToken returns a short-lived token for u.
func (i *TokenIssuer) IssueAccessToken(u *model.User) (Token, error) {
	return i.issue(u, TypeAccess, i.accessTTL)
}

// IssueRefreshToken returns a long-lived token for u.  The caller persists it
// in the refresh token ledger.
func (i *TokenIssuer) IssueRefreshToken(u *model.User) (Token, error) {
	return i.issue(u, TypeRefresh, i.refreshTTL)
}

func (i *TokenIssuer) issue(u *model.User, typ string, ttl time.Duration) (Token, error) {
	now := i.now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: u.ID,
		Role:   string(u.Role),
		Status: string(u.Status),
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			// jti keeps two tokens minted in the same second distinct.
			ID: uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse verifies signature and expiry and returns the claims.
func (i *TokenIssuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if !tok.Valid {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// Validate reports whether raw is correctly signed, unexpired and issued to
// expectedSubject.  It never returns an error; every failure is false.
func (i *TokenIssuer) Validate(raw, expectedSubject string) bool {
	claims, err := i.Parse(raw)
	if err != nil {
		return false
	}
	return claims.Subject != "" && claims.Subject == expectedSubject
}

// ExtractClaim returns a single claim by its JSON name.  Malformed tokens and
// bad signatures yield ErrMalformedToken; an unknown claim name yields nil.
func (i *TokenIssuer) ExtractClaim(raw, name string) (any, error) {
	claims, err := i.Parse(raw)
	if err != nil {
		return nil, err
	}
	switch name {
	case "sub":
		return claims.Subject, nil
	case "id":
		return claims.UserID, nil
	case "role":
		return claims.Role, nil
	case "status":
		return claims.Status, nil
	case "typ":
		return claims.Type, nil
	case "jti":
		return claims.ID, nil
	case "iat":
		return claims.IssuedAt.Time, nil
	case "exp":
		return claims.ExpiresAt.Time, nil
	}
	return nil, nil
}

// ExtractSubject returns the "sub" claim.
func (i *TokenIssuer) ExtractSubject(raw string) (string, error) {
	claims, err := i.Parse(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// HashToken returns the SHA-256 hex digest of a raw refresh token.  Only the
// digest is stored so a leaked table cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
