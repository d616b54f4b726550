package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/identity-service/internal/model"
	"github.com/iliyamo/identity-service/internal/repository"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, x := range m.byID {
		if x.Email == email {
			cp := *x
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if x, ok := m.byID[id]; ok {
		cp := *x
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) UpdatePending(_ context.Context, id, hash, name string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok || x.Status != model.StatusPending {
		return repository.ErrNotPending
	}
	x.PasswordHash, x.FullName, x.UpdatedAt = hash, name, now
	return nil
}

func (m *memUsers) Activate(_ context.Context, id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok || x.Status != model.StatusPending {
		return repository.ErrNotPending
	}
	x.Status, x.UpdatedAt = model.StatusActive, now
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, p repository.ProfileUpdate, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	x.FullName, x.Phone, x.Address, x.AvatarURL, x.UpdatedAt = p.FullName, p.Phone, p.Address, p.AvatarURL, now
	return nil
}

func (m *memUsers) setStatus(id string, s model.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].Status = s
}

// memTokens mirrors the conditional update of the SQL ledger under a mutex.
type memTokens struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[string]*model.RefreshToken
}

func newMemTokens() *memTokens { return &memTokens{rows: map[string]*model.RefreshToken{}} }

func (m *memTokens) Store(_ context.Context, userID, hash string, exp, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows[hash] = &model.RefreshToken{ID: m.nextID, UserID: userID, TokenHash: hash, ExpiresAt: exp, CreatedAt: now}
	return nil
}

func (m *memTokens) GetByHash(_ context.Context, hash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[hash]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memTokens) Rotate(_ context.Context, oldHash, userID, newHash string, newExp, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[oldHash]
	if !ok || r.UserID != userID || r.Revoked || !now.Before(r.ExpiresAt) {
		return repository.ErrTokenRevoked
	}
	r.Revoked, r.RevokedAt = true, &now
	m.nextID++
	m.rows[newHash] = &model.RefreshToken{ID: m.nextID, UserID: userID, TokenHash: newHash, ExpiresAt: newExp, CreatedAt: now}
	return nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[hash]
	if !ok || r.Revoked {
		return false, nil
	}
	r.Revoked, r.RevokedAt = true, &now
	return true, nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.rows {
		if r.UserID == userID && !r.Revoked {
			r.Revoked, r.RevokedAt = true, &now
			n++
		}
	}
	return n, nil
}

// gatedTokens lets two rotations read the same live row before either
// writes, so the conditional update alone decides the winner.
type gatedTokens struct {
	*memTokens
	reads sync.WaitGroup
}

func (g *gatedTokens) GetByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	r, err := g.memTokens.GetByHash(ctx, hash)
	g.reads.Done()
	g.reads.Wait()
	return r, err
}

type sentOTP struct{ email, name, code string }

type captureMail struct {
	mu   sync.Mutex
	sent []sentOTP
}

func (c *captureMail) DeliverOTP(email, name, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentOTP{email, name, code})
}

func (c *captureMail) last() sentOTP {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return sentOTP{}
	}
	return c.sent[len(c.sent)-1]
}

type countingEvicter struct{ subjects []string }

func (c *countingEvicter) Evict(_ context.Context, sub string) error {
	c.subjects = append(c.subjects, sub)
	return nil
}
