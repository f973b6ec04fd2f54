package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fy0/filterable/filter"
)

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool    *pgxpool.Pool
	builder *Builder
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects a pool to dsn and pings it.
func OpenPostgres(ctx context.Context, dsn string, oracle filter.MetadataOracle) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	poolConfig.MaxConns = 5
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgres(pool, oracle), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool, oracle filter.MetadataOracle) *Postgres {
	return &Postgres{pool: pool, builder: NewBuilder(oracle, filter.DialectPostgres)}
}

func (p *Postgres) Find(ctx context.Context, q *filter.Query, columns ...string) ([]filter.MapRow, error) {
	sb, err := p.builder.Select(q, columns...)
	if err != nil {
		return nil, err
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("store: collect rows: %w", err)
	}
	out := make([]filter.MapRow, len(maps))
	for i, m := range maps {
		out[i] = filter.MapRow(m)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context, q *filter.Query) (int64, error) {
	sb, err := p.builder.Count(q)
	if err != nil {
		return 0, err
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return 0, fmt.Errorf("store: build count: %w", err)
	}
	var n int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
