package db

import (
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/teranos/FINQ/errors"
)

// mysqlReadOnlyTx is ER_CANT_EXECUTE_IN_READ_ONLY_TRANSACTION
const mysqlReadOnlyTx = 1792

// ErrDatabaseClosed is returned when operations are attempted on a closed database.
// This typically happens during graceful shutdown while an ingestion is
// still committing records.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// The string match covers raw database/sql errors that cannot be wrapped at
// the source.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}

	return strings.Contains(err.Error(), "database is closed")
}

// IsReadOnlyViolation reports whether err is the backend refusing a write on
// a connection or transaction opened read-only.
func IsReadOnlyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrReadonly
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlReadOnlyTx
	}
	return false
}
