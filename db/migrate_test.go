package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMigrate(t *testing.T) {
	t.Run("is idempotent", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, Migrate(db, zaptest.NewLogger(t).Sugar()))
		require.NoError(t, Migrate(db, nil), "running migrations multiple times should be safe")

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
		assert.Equal(t, 4, count)
	})

	t.Run("identity index treats NULL source ids as equal", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()
		require.NoError(t, Migrate(db, nil))

		insert := `INSERT OR IGNORE INTO financial_records
			(dataset_id, period_start, period_end, metric, amount, currency)
			VALUES ('ds', '2024-01-01', '2024-01-01', 'revenue', 10, 'USD')`

		res, err := db.Exec(insert)
		require.NoError(t, err)
		n, _ := res.RowsAffected()
		assert.Equal(t, int64(1), n)

		res, err = db.Exec(insert)
		require.NoError(t, err)
		n, _ = res.RowsAffected()
		assert.Equal(t, int64(0), n)
	})

	t.Run("fails on closed database", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		db.Close()

		require.Error(t, Migrate(db, nil))
	})
}

func TestMigrationsParseForEveryDialect(t *testing.T) {
	for _, dialect := range []Dialect{SQLite, MySQL} {
		t.Run(string(dialect), func(t *testing.T) {
			entries, err := migrations.ReadDir(dialect.migrationsDir())
			require.NoError(t, err)
			require.NotEmpty(t, entries)
			assert.Equal(t, "000_create_schema_migrations.sql", entries[0].Name())

			for _, e := range entries {
				body, err := migrations.ReadFile(dialect.migrationsDir() + "/" + e.Name())
				require.NoError(t, err)
				assert.NotEmpty(t, splitStatements(string(body)), e.Name())
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- header; with a semicolon
CREATE TABLE a (id INT);

-- second
CREATE INDEX ix ON a (id);
`
	stmts := splitStatements(script)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (id INT)", stmts[0])
	assert.Equal(t, "CREATE INDEX ix ON a (id)", stmts[1])
}
