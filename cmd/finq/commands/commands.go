// Package commands implements the finq command line.
package commands

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/am"
	"github.com/teranos/FINQ/db"
	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/logger"
)

// Register adds every finq command to root
func Register(root *cobra.Command) {
	root.AddCommand(
		IngestCmd,
		RecordsCmd,
		DatasetsCmd,
		AskCmd,
		ConverseCmd,
		ForecastCmd,
		UsageCmd,
		ServeCmd,
		DbCmd,
		AmCmd,
		VersionCmd,
	)
}

// FormatError renders err with any hints attached to it
func FormatError(err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %v", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(&b, "\nHint: %s", hint)
	}
	return b.String()
}

// loadConfig loads and validates the configuration
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// openDatabase opens and migrates the configured database
func openDatabase(cfg *am.Config) (*sql.DB, db.Dialect, error) {
	dialect, err := db.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, "", err
	}

	dsn := cfg.GetDatabasePath()
	if dialect == db.MySQL {
		dsn = cfg.Database.DSN
	}

	database, err := db.OpenDialect(dialect, dsn, logger.Logger)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open %s database", dialect)
	}
	return database, dialect, nil
}

// openStore loads the configuration and opens the fact store. Callers
// close store.DB().
func openStore() (*am.Config, *facts.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, dialect, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, facts.NewStore(database, dialect, logger.Logger), nil
}
