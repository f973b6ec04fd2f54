package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"modernc.org/sqlite"

	"github.com/fy0/filterable/filter"
)

func init() {
	// Predicates render UNACCENT(LOWER(x)) for accent-insensitive matching.
	sqlite.MustRegisterDeterministicScalarFunction("unaccent", 1, unaccentFunc)
}

func unaccentFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("unaccent expects 1 argument")
	}
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return filter.Unaccent(v), nil
	case []byte:
		return filter.Unaccent(string(v)), nil
	default:
		return v, nil
	}
}

// SQLite is a Store backed by modernc.org/sqlite.
type SQLite struct {
	db      *sql.DB
	builder *Builder
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens dsn. In-memory databases are limited to one connection
// so every query sees the same data.
func OpenSQLite(ctx context.Context, dsn string, oracle filter.MetadataOracle) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLite{db: db, builder: NewBuilder(oracle, filter.DialectSQLite)}, nil
}

// DB returns the underlying database handle.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func (s *SQLite) Find(ctx context.Context, q *filter.Query, columns ...string) ([]filter.MapRow, error) {
	sb, err := s.builder.Select(q, columns...)
	if err != nil {
		return nil, err
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []filter.MapRow
	for rows.Next() {
		values := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		row := make(filter.MapRow, len(names))
		for i, name := range names {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLite) Count(ctx context.Context, q *filter.Query) (int64, error) {
	sb, err := s.builder.Count(q)
	if err != nil {
		return 0, err
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("store: build count: %w", err)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
