// Package repository defines the MySQL access layer and the sentinel
// errors shared by its repositories.  Handlers never see these directly;
// the service layer translates them into the user-facing error kinds.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrChallengeNotVerified is returned by the registration transaction
// when no verified, unconsumed and unexpired challenge exists.
var ErrChallengeNotVerified = errors.New("no verified otp challenge")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
