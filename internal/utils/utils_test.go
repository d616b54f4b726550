package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/identity-service/internal/model"
)

func testUser() *model.User {
	return &model.User{
		ID:     "7c0e3d2a-1111-4a4a-9b9b-000000000001",
		Email:  "a@x.com",
		Role:   model.RoleManager,
		Status: model.StatusActive,
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newIssuer(c *clock) *TokenIssuer {
	return NewTokenIssuer("test-secret", 24*time.Hour, 7*24*time.Hour, c.now)
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("Passw0rd!", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd!", hash)
	assert.True(t, VerifyPassword(hash, "Passw0rd!"))
	assert.False(t, VerifyPassword(hash, "passw0rd!"))
	assert.False(t, VerifyPassword("not-a-hash", "Passw0rd!"))
}

func TestPasswordSaltedPerCall(t *testing.T) {
	a, err := HashPassword("Passw0rd!", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("Passw0rd!", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Passw0rd!":  true,
		"Pa0!":       false,
		"password1!": false,
		"PASSWORD1!": false,
		"Password!!": false,
		"Password11": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, StrongPassword(in), in)
	}
}

func TestIssueAndValidate(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(c)
	u := testUser()

	access, err := iss.IssueAccessToken(u)
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(24*time.Hour), access.ExpiresAt)

	assert.True(t, iss.Validate(access.Value, "a@x.com"))
	assert.False(t, iss.Validate(access.Value, "b@x.com"))

	typ, err := iss.ExtractClaim(access.Value, "typ")
	require.NoError(t, err)
	assert.Equal(t, TypeAccess, typ)
	role, err := iss.ExtractClaim(access.Value, "role")
	require.NoError(t, err)
	assert.Equal(t, "MANAGER", role)
	id, err := iss.ExtractClaim(access.Value, "id")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	missing, err := iss.ExtractClaim(access.Value, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRefreshTokenLifetime(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(c)

	refresh, err := iss.IssueRefreshToken(testUser())
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(7*24*time.Hour), refresh.ExpiresAt)
	typ, err := iss.ExtractClaim(refresh.Value, "typ")
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, typ)
}

func TestTokensAreDistinctWithinOneSecond(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(c)
	a, err := iss.IssueRefreshToken(testUser())
	require.NoError(t, err)
	b, err := iss.IssueRefreshToken(testUser())
	require.NoError(t, err)
	assert.NotEqual(t, a.Value, b.Value)
	assert.NotEqual(t, HashToken(a.Value), HashToken(b.Value))
}

func TestValidateRejectsExpired(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(c)
	access, err := iss.IssueAccessToken(testUser())
	require.NoError(t, err)

	c.t = c.t.Add(24*time.Hour + time.Second)
	assert.False(t, iss.Validate(access.Value, "a@x.com"))
	_, err = iss.ExtractSubject(access.Value)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestValidateRejectsTampering(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(c)
	access, err := iss.IssueAccessToken(testUser())
	require.NoError(t, err)

	parts := strings.Split(access.Value, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	assert.False(t, iss.Validate(tampered, "a@x.com"))

	other := NewTokenIssuer("other-secret", time.Hour, time.Hour, c.now)
	assert.False(t, other.Validate(access.Value, "a@x.com"))
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	iss := newIssuer(c)
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "a@x.com",
		"exp": c.t.Add(time.Hour).Unix(),
	})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.False(t, iss.Validate(raw, "a@x.com"))
}

func TestExtractClaimMalformed(t *testing.T) {
	iss := NewTokenIssuer("s", time.Hour, time.Hour, nil)
	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := iss.ExtractClaim(raw, "sub")
		assert.ErrorIs(t, err, ErrMalformedToken, raw)
		assert.False(t, iss.Validate(raw, "a@x.com"))
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.Len(t, HashToken("abc"), 64)
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		assert.True(t, WellFormedOTP(code), code)
	}
	assert.False(t, WellFormedOTP("12345"))
	assert.False(t, WellFormedOTP("1234567"))
	assert.False(t, WellFormedOTP("12a456"))
}
