package db

import (
	"strings"

	"github.com/teranos/FINQ/errors"
)

// Dialect names a supported SQL backend. The value doubles as the
// database/sql driver name.
type Dialect string

const (
	SQLite Dialect = "sqlite3"
	MySQL  Dialect = "mysql"
)

// ParseDialect accepts the configured database.driver value.
// An empty string selects SQLite.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return "", errors.WithHint(
			errors.NewInvalidRequestError("unknown database driver %q", s),
			"database.driver must be sqlite3 or mysql")
	}
}

// InsertIgnore builds a single-row insert of columns into table that
// affects no row when it would duplicate a unique key. Other constraint or
// data errors still fail the statement.
func (d Dialect) InsertIgnore(table string, columns ...string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	values := "(" + strings.Join(columns, ", ") + ") VALUES (" + placeholders + ")"
	if d == MySQL {
		// INSERT IGNORE would also downgrade truncation and range errors to warnings
		return "INSERT INTO " + table + " " + values + " ON DUPLICATE KEY UPDATE id = id"
	}
	return "INSERT OR IGNORE INTO " + table + " " + values
}

func (d Dialect) migrationsDir() string {
	if d == MySQL {
		return "mysql/migrations"
	}
	return "sqlite/migrations"
}
