package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/identity-service/internal/model"
)

// UserRepo is the credential store backed by the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,full_name,phone,address,avatar_url,role,status,created_at,updated_at"

// NormalizeEmail lower-cases and trims an address; every lookup goes through it.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts u.  An empty ID is filled with a random UUID and zero
// timestamps are set to now.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Phone, u.Address, u.AvatarURL,
		string(u.Role), string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByEmail fetches a user by normalized e-mail.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// UpdatePending replaces the password hash and name of an account that has
// not been activated yet.  Used when someone registers the same e-mail again
// before activating.
func (r *UserRepo) UpdatePending(ctx context.Context, id, passwordHash, fullName string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, full_name=?, updated_at=? WHERE id=? AND status=?",
		passwordHash, fullName, now, id, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("update pending user: %w", err)
	}
	return expectOne(res, ErrNotPending)
}

// Activate flips a PENDING account to ACTIVE.  The status guard makes a
// second activation a no-op that reports ErrNotPending.
func (r *UserRepo) Activate(ctx context.Context, id string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET status=?, updated_at=? WHERE id=? AND status=?",
		string(model.StatusActive), now, id, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	return expectOne(res, ErrNotPending)
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FullName  string
	Phone     string
	Address   string
	AvatarURL string
}

// UpdateProfile overwrites the profile fields of user id.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, p ProfileUpdate, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET full_name=?, phone=?, address=?, avatar_url=?, updated_at=? WHERE id=?",
		p.FullName, p.Phone, p.Address, p.AvatarURL, now, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return expectOne(res, ErrNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u            model.User
		role, status string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.Address,
		&u.AvatarURL, &role, &status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = model.ParseRole(role)
	u.Status = model.Status(status)
	return &u, nil
}

// expectOne maps zero affected rows to miss.  MySQL reports matched-but-
// unchanged rows as zero unless CLIENT_FOUND_ROWS is set, so callers always
// bump updated_at.
func expectOne(res sql.Result, miss error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return miss
	}
	return nil
}
