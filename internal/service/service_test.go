package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/identity-service/internal/apperror"
	"github.com/iliyamo/identity-service/internal/model"
	"github.com/iliyamo/identity-service/internal/utils"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	users  *memUsers
	tokens *memTokens
	mr     *miniredis.Miniredis
	otps   *RedisOTPStore
	mail   *captureMail
	clock  *testClock
	issuer *utils.TokenIssuer
	ledger *RefreshLedger
	auth   *AuthService
}

func newFixture(t *testing.T, tokens TokenStore, bypass bool) *fixture {
	t.Helper()
	f := &fixture{
		users: newMemUsers(),
		mr:    miniredis.RunT(t),
		mail:  &captureMail{},
		clock: &testClock{t: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)},
	}
	if mt, ok := tokens.(*memTokens); ok {
		f.tokens = mt
	}
	rdb := redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	f.otps = NewRedisOTPStore(rdb, 3*time.Minute)
	f.issuer = utils.NewTokenIssuer("svc-secret", 24*time.Hour, 7*24*time.Hour, f.clock.Now)
	f.ledger = NewRefreshLedger(tokens, f.users, f.issuer, f.clock.Now)
	f.auth = NewAuthService(f.users, f.ledger, f.issuer, f.otps, f.mail,
		AuthConfig{BcryptCost: bcrypt.MinCost, BypassVerify: bypass, Now: f.clock.Now}, nil)
	return f
}

func defaultFixture(t *testing.T) *fixture { return newFixture(t, newMemTokens(), false) }

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, status, ae.HTTPStatus, ae.Message)
}

// activeUser registers and activates email with password.
func (f *fixture) activeUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	ctx := context.Background()
	_, err := f.auth.Register(ctx, RegisterInput{Email: email, Password: password, FullName: "Test User"})
	require.NoError(t, err)
	require.NoError(t, f.auth.Activate(ctx, email, f.mail.last().code))
	u, err := f.users.GetByEmail(ctx, email)
	require.NoError(t, err)
	return u
}

func TestRegisterCreatesPendingAndSendsCode(t *testing.T) {
	f := defaultFixture(t)
	u, err := f.auth.Register(context.Background(), RegisterInput{Email: " A@X.com", Password: "Pw1!2345", FullName: "Name"})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, model.StatusPending, u.Status)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.NotEqual(t, "Pw1!2345", u.PasswordHash)

	sent := f.mail.last()
	assert.Equal(t, "a@x.com", sent.email)
	assert.Equal(t, "Name", sent.name)
	assert.True(t, utils.WellFormedOTP(sent.code))
	stored, err := f.mr.Get("otp:a@x.com")
	require.NoError(t, err)
	assert.Equal(t, sent.code, stored)
	assert.Equal(t, 3*time.Minute, f.mr.TTL("otp:a@x.com"))
}

func TestRegisterConflictForActiveAccount(t *testing.T) {
	f := defaultFixture(t)
	f.activeUser(t, "a@x.com", "Pw1!2345")

	_, err := f.auth.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "Pw1!2345", FullName: "Other"})
	requireStatus(t, err, http.StatusConflict)
}

func TestRegisterAgainWhilePendingOverwrites(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	first, err := f.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "Pw1!2345", FullName: "Old"})
	require.NoError(t, err)

	second, err := f.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "New1!pass", FullName: "New"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := f.users.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", stored.FullName)
	assert.True(t, utils.VerifyPassword(stored.PasswordHash, "New1!pass"))
	assert.Len(t, f.mail.sent, 2)
}

func TestRegisterBypassVerification(t *testing.T) {
	f := newFixture(t, newMemTokens(), true)
	u, err := f.auth.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "Pw1!2345", FullName: "Name"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, u.Status)
	assert.Empty(t, f.mail.sent)
}

func TestActivate(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "Pw1!2345", FullName: "Name"})
	require.NoError(t, err)
	code := f.mail.last().code
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	requireStatus(t, f.auth.Activate(ctx, "a@x.com", "12ab56"), http.StatusBadRequest)
	requireStatus(t, f.auth.Activate(ctx, "a@x.com", wrong), http.StatusBadRequest)
	requireStatus(t, f.auth.Activate(ctx, "nobody@x.com", code), http.StatusNotFound)

	require.NoError(t, f.auth.Activate(ctx, "a@x.com", code))
	u, err := f.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, u.Status)

	ok, err := f.otps.Verify(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok, "code is single use")
	requireStatus(t, f.auth.Activate(ctx, "a@x.com", code), http.StatusBadRequest)
}

func TestActivateExpiredCode(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "Pw1!2345", FullName: "Name"})
	require.NoError(t, err)
	code := f.mail.last().code

	f.mr.FastForward(3*time.Minute + time.Second)

	ok, err := f.otps.Verify(ctx, "a@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
	requireStatus(t, f.auth.Activate(ctx, "a@x.com", code), http.StatusBadRequest)
}

func TestResendOTP(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	_, err := f.auth.Register(ctx, RegisterInput{Email: "a@x.com", Password: "Pw1!2345", FullName: "Name"})
	require.NoError(t, err)

	require.NoError(t, f.auth.ResendOTP(ctx, "a@x.com"))
	assert.Len(t, f.mail.sent, 2)
	stored, err := f.mr.Get("otp:a@x.com")
	require.NoError(t, err)
	assert.Equal(t, f.mail.last().code, stored)

	requireStatus(t, f.auth.ResendOTP(ctx, "nobody@x.com"), http.StatusNotFound)

	require.NoError(t, f.auth.Activate(ctx, "a@x.com", stored))
	requireStatus(t, f.auth.ResendOTP(ctx, "a@x.com"), http.StatusBadRequest)
}

func TestLogin(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	f.activeUser(t, "a@x.com", "Pw1!2345")
	_, err := f.auth.Register(ctx, RegisterInput{Email: "p@x.com", Password: "Pw1!2345", FullName: "Pending"})
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, LoginInput{Email: "nobody@x.com", Password: "Pw1!2345"})
	requireStatus(t, err, http.StatusUnauthorized)
	_, err = f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong"})
	requireStatus(t, err, http.StatusUnauthorized)
	_, err = f.auth.Login(ctx, LoginInput{Email: "p@x.com", Password: "Pw1!2345"})
	requireStatus(t, err, http.StatusBadRequest)

	res, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Pw1!2345"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "a@x.com", res.User.Email)
	assert.True(t, f.issuer.Validate(res.AccessToken, "a@x.com"))

	row, err := f.tokens.GetByHash(ctx, utils.HashToken(res.RefreshToken))
	require.NoError(t, err)
	assert.False(t, row.Revoked)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), row.ExpiresAt)
}

func TestRefreshRotatesOnce(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	f.activeUser(t, "a@x.com", "Pw1!2345")
	res, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Pw1!2345"})
	require.NoError(t, err)

	pair, err := f.auth.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)
	assert.True(t, f.issuer.Validate(pair.AccessToken, "a@x.com"))

	_, err = f.auth.Refresh(ctx, res.RefreshToken)
	requireStatus(t, err, http.StatusBadRequest)

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err, "the rotated token is usable")
}

func TestRefreshUnknownToken(t *testing.T) {
	f := defaultFixture(t)
	_, err := f.auth.Refresh(context.Background(), "never-issued")
	requireStatus(t, err, http.StatusNotFound)
}

func TestRefreshExpiredToken(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	f.activeUser(t, "a@x.com", "Pw1!2345")
	res, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Pw1!2345"})
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour + time.Second)
	_, err = f.auth.Refresh(ctx, res.RefreshToken)
	requireStatus(t, err, http.StatusBadRequest)
}

func TestRefreshInactiveOwner(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	u := f.activeUser(t, "a@x.com", "Pw1!2345")
	res, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Pw1!2345"})
	require.NoError(t, err)

	f.users.setStatus(u.ID, model.StatusSuspended)
	_, err = f.auth.Refresh(ctx, res.RefreshToken)
	requireStatus(t, err, http.StatusBadRequest)
}

func TestConcurrentRotationExactlyOneWins(t *testing.T) {
	gated := &gatedTokens{memTokens: newMemTokens()}
	f := newFixture(t, gated, false)
	f.tokens = gated.memTokens
	ctx := context.Background()

	u := f.activeUser(t, "a@x.com", "Pw1!2345")
	refresh, err := f.ledger.IssueAndStore(ctx, u)
	require.NoError(t, err)

	gated.reads.Add(2)
	var (
		wg        sync.WaitGroup
		successes int
		failures  []error
		mu        sync.Mutex
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Rotate(ctx, refresh.Value)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	require.Len(t, failures, 1)
	requireStatus(t, failures[0], http.StatusBadRequest)
}

func TestLogoutRevokesEveryRefreshToken(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	u := f.activeUser(t, "a@x.com", "Pw1!2345")

	first, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Pw1!2345"})
	require.NoError(t, err)
	second, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Pw1!2345"})
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, u.ID))

	for _, tok := range []string{first.RefreshToken, second.RefreshToken} {
		_, err := f.auth.Refresh(ctx, tok)
		requireStatus(t, err, http.StatusBadRequest)
	}
	n, err := f.ledger.RevokeAll(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLedgerRevokeSingle(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	u := f.activeUser(t, "a@x.com", "Pw1!2345")
	tok, err := f.ledger.IssueAndStore(ctx, u)
	require.NoError(t, err)

	ok, err := f.ledger.Revoke(ctx, tok.Value)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.ledger.Revoke(ctx, tok.Value)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = f.ledger.Rotate(ctx, tok.Value)
	requireStatus(t, err, http.StatusBadRequest)
}

func TestOTPStoreWithoutRedis(t *testing.T) {
	s := NewRedisOTPStore(nil, 0)
	assert.ErrorIs(t, s.Save(context.Background(), "a@x.com", "123456"), ErrOTPUnavailable)
	ok, err := s.Verify(context.Background(), "a@x.com", "bad")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestUserServiceProfile(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	u := f.activeUser(t, "a@x.com", "Pw1!2345")
	cache := &countingEvicter{}
	svc := NewUserService(f.users, f.ledger, cache, f.clock.Now, nil)

	got, err := svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test User", got.FullName)

	_, err = svc.Profile(ctx, "missing")
	requireStatus(t, err, http.StatusNotFound)

	updated, err := svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Phone: "+15550100", Address: "1 Main St"})
	require.NoError(t, err)
	assert.Equal(t, "Test User", updated.FullName, "empty fields keep stored values")
	assert.Equal(t, "+15550100", updated.Phone)
	assert.Equal(t, []string{"a@x.com"}, cache.subjects)

	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", stored.Address)
}

func TestUserServiceRevokeSessions(t *testing.T) {
	f := defaultFixture(t)
	ctx := context.Background()
	u := f.activeUser(t, "a@x.com", "Pw1!2345")
	svc := NewUserService(f.users, f.ledger, nil, f.clock.Now, nil)

	_, err := f.auth.Login(ctx, LoginInput{Email: "a@x.com", Password: "Pw1!2345"})
	require.NoError(t, err)
	n, err := svc.RevokeSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = svc.RevokeSessions(ctx, "missing")
	requireStatus(t, err, http.StatusNotFound)
}
