package mysql

import (
	"database/sql/driver"
	"errors"

	sqlmysql "github.com/go-sql-driver/mysql"
)

// MySQL server error numbers that resolve by redoing the whole unit.
const (
	errLockWaitTimeout = 1205
	errDeadlockFound   = 1213
)

// ER_DUP_ENTRY, raised by the ref_id unique index.
const errDuplicateEntry = 1062

// IsDuplicateKey reports whether err is a unique-constraint violation.
func IsDuplicateKey(err error) bool {
	var mysqlErr *sqlmysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}

// IsTransient reports whether err is a storage failure worth re-running the
// atomic unit for. Business errors never match, so they are surfaced on the
// first attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var mysqlErr *sqlmysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errLockWaitTimeout, errDeadlockFound:
			return true
		}
		return false
	}

	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sqlmysql.ErrInvalidConn)
}
