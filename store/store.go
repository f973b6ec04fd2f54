package store

import (
	"context"
	"fmt"

	"github.com/fy0/filterable/filter"
)

// Store executes resolved filter queries.
type Store interface {
	// Find returns the rows selected by q.
	Find(ctx context.Context, q *filter.Query, columns ...string) ([]filter.MapRow, error)
	// Count returns the number of rows matched by q before pagination.
	Count(ctx context.Context, q *filter.Query) (int64, error)
	Close() error
}

// Open connects to the database named by driver, "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string, oracle filter.MetadataOracle) (Store, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(ctx, dsn, oracle)
	case "postgres":
		return OpenPostgres(ctx, dsn, oracle)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
