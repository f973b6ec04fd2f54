// Package store runs resolved filter queries against a database.
//
// Select turns a filter.Query into a squirrel SELECT. The predicates are
// rendered with `?` placeholders and squirrel applies the placeholder
// format of the target database.
package store

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/fy0/filterable/filter"
)

// Builder assembles SELECT statements for one database dialect.
type Builder struct {
	oracle  filter.MetadataOracle
	dialect filter.DialectName
}

// NewBuilder returns a Builder reading table names from oracle.
func NewBuilder(oracle filter.MetadataOracle, dialect filter.DialectName) *Builder {
	return &Builder{oracle: oracle, dialect: dialect}
}

func (b *Builder) placeholders() sq.PlaceholderFormat {
	switch b.dialect {
	case filter.DialectPostgres, filter.DialectPostgresNamedArgs:
		return sq.Dollar
	default:
		return sq.Question
	}
}

func (b *Builder) renderOptions() filter.RenderOptions {
	dialect := b.dialect
	if dialect == filter.DialectPostgresNamedArgs {
		dialect = filter.DialectPostgres
	}
	opts := filter.RenderOptions{Dialect: dialect, QuestionMarks: true}
	if dialect == filter.DialectSQLite {
		opts.ConvertParam = sqliteParam
	}
	return opts
}

// Select builds the SELECT of q: joins, WHERE, ORDER BY, LIMIT and OFFSET.
// Without columns every column of the root alias is selected. q must not
// have pending merges.
func (b *Builder) Select(q *filter.Query, columns ...string) (sq.SelectBuilder, error) {
	if len(columns) == 0 {
		columns = []string{q.Alias + ".*"}
	}
	sb, err := b.base(q, sq.Select(columns...))
	if err != nil {
		return sb, err
	}
	for _, o := range q.OrderBy {
		term := o.Column.String()
		if o.Descending {
			term += " DESC"
		}
		sb = sb.OrderBy(term)
	}
	if q.Limit > 0 {
		sb = sb.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		sb = sb.Offset(uint64(q.Offset))
	}
	return sb, nil
}

// Count builds a SELECT COUNT(*) over the rows of q, ignoring ordering and
// pagination.
func (b *Builder) Count(q *filter.Query) (sq.SelectBuilder, error) {
	return b.base(q, sq.Select("COUNT(*)"))
}

func (b *Builder) base(q *filter.Query, sb sq.SelectBuilder) (sq.SelectBuilder, error) {
	if q.Pending() {
		return sb, fmt.Errorf("store: query has pending merges")
	}
	meta, err := b.oracle.Metadata(q.Entity)
	if err != nil {
		return sb, fmt.Errorf("store: metadata for %q: %w", q.Entity, err)
	}
	sb = sb.From(meta.TableName() + " " + q.Alias).PlaceholderFormat(b.placeholders())

	opts := b.renderOptions()
	for _, j := range q.Joins {
		on, err := filter.Render(j.Condition(), q.Params, opts)
		if err != nil {
			return sb, fmt.Errorf("store: join %s: %w", j.Expression(), err)
		}
		clause := fmt.Sprintf("%s %s ON %s", j.Table, j.Alias, on.SQL)
		switch j.Kind {
		case filter.JoinInner:
			sb = sb.InnerJoin(clause, on.Args...)
		default:
			sb = sb.LeftJoin(clause, on.Args...)
		}
	}

	if q.Where != nil {
		where, err := filter.Render(q.Where, q.Params, opts)
		if err != nil {
			return sb, fmt.Errorf("store: where: %w", err)
		}
		sb = sb.Where(where.SQL, where.Args...)
	}
	return sb, nil
}

// sqliteParam stores temporal values in the text formats SQLite compares
// lexically and guids as strings.
func sqliteParam(p filter.Parameter) any {
	switch v := p.Value.(type) {
	case time.Time:
		switch p.Type.Family() {
		case filter.FieldTypeDate:
			return v.Format("2006-01-02")
		case filter.FieldTypeTime:
			return v.Format("15:04:05")
		default:
			return v.UTC().Format("2006-01-02 15:04:05")
		}
	case uuid.UUID:
		return v.String()
	}
	return p.Value
}
