package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/identity-service/internal/utils"
)

// ErrOTPUnavailable is returned when no Redis client was configured.
var ErrOTPUnavailable = errors.New("otp store unavailable")

// OTPStore keeps one pending activation code per e-mail.
type OTPStore interface {
	Save(ctx context.Context, email, code string) error
	Verify(ctx context.Context, email, code string) (bool, error)
	Consume(ctx context.Context, email string) error
}

// RedisOTPStore stores codes at "otp:<email>" with a TTL; an expired code
// is simply absent.
type RedisOTPStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisOTPStore(rdb *redis.Client, ttl time.Duration) *RedisOTPStore {
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	return &RedisOTPStore{rdb: rdb, ttl: ttl}
}

func otpKey(email string) string { return "otp:" + email }

// Save replaces any previous code for email.
func (s *RedisOTPStore) Save(ctx context.Context, email, code string) error {
	if s.rdb == nil {
		return ErrOTPUnavailable
	}
	if err := s.rdb.Set(ctx, otpKey(email), code, s.ttl).Err(); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

// Verify reports whether code is well formed and equals the stored code.
func (s *RedisOTPStore) Verify(ctx context.Context, email, code string) (bool, error) {
	if !utils.WellFormedOTP(code) {
		return false, nil
	}
	if s.rdb == nil {
		return false, ErrOTPUnavailable
	}
	stored, err := s.rdb.Get(ctx, otpKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read otp: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1, nil
}

// Consume deletes the code so it cannot be used again.
func (s *RedisOTPStore) Consume(ctx context.Context, email string) error {
	if s.rdb == nil {
		return ErrOTPUnavailable
	}
	return s.rdb.Del(ctx, otpKey(email)).Err()
}
