// Package repository holds the MySQL-backed stores.  Sentinel errors below
// let services tell a missing row from a state conflict without inspecting
// driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no row matches the lookup.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by UserRepo.Create on a duplicate e-mail.
var ErrEmailExists = errors.New("email already exists")

// ErrNotPending is returned when a conditional update expected a PENDING
// account but the row has moved on.
var ErrNotPending = errors.New("account is not pending")

// ErrTokenRevoked is returned by TokenRepo.Rotate when the presented token
// was already revoked, expired, or consumed by a concurrent rotation.
var ErrTokenRevoked = errors.New("refresh token revoked or expired")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
