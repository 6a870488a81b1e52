package db

import (
	"database/sql"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/FINQ/errors"
)

// SQLiteBusyTimeoutMS is how long SQLite waits on a locked database before
// returning SQLITE_BUSY.
const SQLiteBusyTimeoutMS = 5000

// Open opens a SQLite database at the specified path with optimized settings.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "path", path, "driver", SQLite)
	}
	db, err := sql.Open(string(SQLite), path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// WAL lets NL queries read while an ingestion commits record by record
	pragmas := []struct {
		stmt string
		what string
	}{
		{"PRAGMA journal_mode = WAL", "enable WAL mode"},
		{"PRAGMA foreign_keys = ON", "enable foreign keys"},
		{"PRAGMA busy_timeout = 5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to %s", p.what)
		}
	}

	if logger != nil {
		logger.Infow("Database opened",
			"path", path,
			"wal_mode", true,
			"busy_timeout_ms", SQLiteBusyTimeoutMS,
		)
	}

	return db, nil
}

// OpenMySQL opens a MySQL database from a go-sql-driver DSN
// (user:pass@tcp(host:3306)/finq). parseTime is left off so dates scan as
// text, matching the SQLite layout.
func OpenMySQL(dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "invalid mysql dsn"),
			"expected user:password@tcp(host:port)/database")
	}
	cfg.ParseTime = false
	cfg.MultiStatements = false

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create mysql connector")
	}
	db := sql.OpenDB(connector)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to reach mysql at %s", cfg.Addr)
	}

	if logger != nil {
		logger.Infow("Database opened", "driver", MySQL, "address", cfg.Addr, "database", cfg.DBName)
	}
	return db, nil
}

// OpenWithMigrations opens a SQLite database and applies pending migrations.
func OpenWithMigrations(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	return OpenDialect(SQLite, path, logger)
}

// OpenDialect opens the database for dialect and applies pending migrations.
// For SQLite dsn is a file path; for MySQL it is a driver DSN.
func OpenDialect(dialect Dialect, dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case MySQL:
		db, err = OpenMySQL(dsn, logger)
	default:
		db, err = Open(dsn, logger)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := MigrateDialect(db, dialect, logger); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate database")
	}
	return db, nil
}
