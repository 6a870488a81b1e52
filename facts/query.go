package facts

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"strings"

	"github.com/teranos/FINQ/db"
	"github.com/teranos/FINQ/errors"
)

// Schema is the table definition shown to the language model when it is
// asked to write SQL.
const Schema = `Table financial_records:
  id            INTEGER  primary key
  dataset_id    TEXT     ingestion batch the row came from
  period_start  TEXT     inclusive start date, YYYY-MM-DD
  period_end    TEXT     inclusive end date, YYYY-MM-DD
  metric        TEXT     lowercase measure name, e.g. revenue, expense, cogs
  amount        REAL     signed amount
  currency      TEXT     ISO currency code, default USD
  category      TEXT     optional grouping
  sub_category  TEXT     optional finer grouping
  raw_source_id TEXT     id of the row in the source file, may be NULL`

// ResultSet is the tabular result of Query.
type ResultSet struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	Truncated bool                     `json:"truncated,omitempty"`
}

var (
	leadingComment = regexp.MustCompile(`(?s)^(\s*(--[^\n]*\n|/\*.*?\*/))*\s*`)
	readVerb       = regexp.MustCompile(`(?i)^(SELECT|WITH)\b`)
)

// ReadOnly checks that query is a single SELECT or WITH statement and
// returns it without surrounding whitespace or a trailing semicolon.
func ReadOnly(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" {
		return "", errors.NewInvalidRequestError("empty SQL statement")
	}

	body := leadingComment.ReplaceAllString(q, "")
	if !readVerb.MatchString(body) {
		return "", errors.WithHint(
			errors.NewInvalidRequestError("only SELECT or WITH statements may run: %q", firstLine(body)),
			"generated SQL is executed read-only")
	}
	if hasStatementSeparator(q) {
		return "", errors.NewInvalidRequestError("multiple SQL statements are not allowed")
	}
	return q, nil
}

// hasStatementSeparator reports a ';' outside quoted strings and identifiers
func hasStatementSeparator(q string) bool {
	var quote rune
	for _, r := range q {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == ';':
			return true
		}
	}
	return false
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// readOnly runs fn where the database itself refuses writes: a read-only
// transaction on MySQL, a query_only connection on SQLite.
func (s *Store) readOnly(ctx context.Context, fn func(queryer) error) error {
	if s.dialect == db.MySQL {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return errors.Wrap(err, "begin read-only transaction")
		}
		defer func() { _ = tx.Rollback() }()
		return fn(tx)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire connection")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return errors.Wrap(err, "enable query_only")
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF"); err != nil {
			// Never hand a read-only connection back to the pool
			s.logger.Warnw("Failed to reset query_only, discarding connection", "error", err)
			_ = conn.Raw(func(interface{}) error { return driver.ErrBadConn })
		}
	}()
	return fn(conn)
}

func queryFailure(err error, what string) error {
	if db.IsReadOnlyViolation(err) {
		return errors.WithHint(
			errors.NewInvalidRequestError("statement modifies data: %v", err),
			"generated SQL is executed read-only")
	}
	return errors.Wrap(err, what)
}

// Query runs a read-only statement and returns at most maxRows rows
// (0 means unlimited). Byte slices are returned as strings. The database
// itself refuses writes, so a data-modifying statement that passes ReadOnly
// still fails with ErrInvalidRequest.
func (s *Store) Query(ctx context.Context, query string, maxRows int) (*ResultSet, error) {
	q, err := ReadOnly(query)
	if err != nil {
		return nil, err
	}

	var rs *ResultSet
	err = s.readOnly(ctx, func(conn queryer) error {
		rows, err := conn.QueryContext(ctx, q)
		if err != nil {
			return queryFailure(err, "execute query")
		}
		defer rows.Close()
		rs, err = collect(rows, maxRows)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("Query executed", "sql", q, "count", len(rs.Rows), "truncated", rs.Truncated)
	return rs, nil
}

func collect(rows *sql.Rows, maxRows int) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}

	rs := &ResultSet{Columns: cols, Rows: []map[string]interface{}{}}
	for rows.Next() {
		if maxRows > 0 && len(rs.Rows) >= maxRows {
			rs.Truncated = true
			break
		}

		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailure(err, "iterate rows")
	}
	return rs, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > 60 {
		line = line[:60] + "..."
	}
	return line
}
