package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/identity-service/internal/apperror"
	"github.com/iliyamo/identity-service/internal/model"
	"github.com/iliyamo/identity-service/internal/repository"
)

// CacheEvicter drops cached responses of a subject.
type CacheEvicter interface {
	Evict(ctx context.Context, subject string) error
}

// UserService serves profile reads and updates and administrative session
// revocation.
type UserService struct {
	users  UserStore
	ledger *RefreshLedger
	cache  CacheEvicter
	now    func() time.Time
	log    *zap.Logger
}

func NewUserService(users UserStore, ledger *RefreshLedger, cache CacheEvicter, now func() time.Time, log *zap.Logger) *UserService {
	if now == nil {
		now = systemNow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{users: users, ledger: ledger, cache: cache, now: now, log: log}
}

type UpdateProfileInput struct {
	FullName  string
	Phone     string
	Address   string
	AvatarURL string
}

func (s *UserService) Profile(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("User not found")
	}
	if err != nil {
		return nil, apperror.Internal("Internal server error", err)
	}
	return u, nil
}

// UpdateProfile overwrites the editable fields.  Empty input fields keep the
// stored value.
func (s *UserService) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*model.User, error) {
	u, err := s.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	p := repository.ProfileUpdate{
		FullName:  orKeep(in.FullName, u.FullName),
		Phone:     orKeep(in.Phone, u.Phone),
		Address:   orKeep(in.Address, u.Address),
		AvatarURL: orKeep(in.AvatarURL, u.AvatarURL),
	}
	now := s.now()
	if err := s.users.UpdateProfile(ctx, id, p, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, apperror.Internal("Internal server error", err)
	}
	if s.cache != nil {
		if err := s.cache.Evict(ctx, u.Email); err != nil {
			s.log.Warn("profile cache eviction failed", zap.String("email", u.Email), zap.Error(err))
		}
	}
	u.FullName, u.Phone, u.Address, u.AvatarURL, u.UpdatedAt = p.FullName, p.Phone, p.Address, p.AvatarURL, now
	return u, nil
}

// RevokeSessions revokes every refresh token of user id.
func (s *UserService) RevokeSessions(ctx context.Context, id string) (int64, error) {
	if _, err := s.Profile(ctx, id); err != nil {
		return 0, err
	}
	return s.ledger.RevokeAll(ctx, id)
}

func orKeep(v, old string) string {
	if v == "" {
		return old
	}
	return v
}
