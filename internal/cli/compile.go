package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fy0/filterable/filter"
	"github.com/fy0/filterable/store"
)

type compileResult struct {
	SQL    string         `json:"sql"`
	Params map[string]any `json:"params,omitempty"`
	Args   []any          `json:"args,omitempty"`
	Joins  []string       `json:"joins,omitempty"`
	Denied bool           `json:"denied"`
	Errors []nodeError    `json:"errors,omitempty"`
}

type nodeError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func newCompileCmd(a *app) *cobra.Command {
	var (
		entity  string
		alias   string
		dialect string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "compile [filter-json]",
		Short: "Compile a filter tree",
		Long: `Validates a filter tree against an entity and prints the compiled
predicate with its parameters as JSON.

With the default dql dialect the WHERE fragment is printed with named
parameters. With sqlite, mysql or postgres the complete SELECT is printed.

Examples:
  filterctl compile --catalog catalog.yaml --entity user '{"field":"name","value":"Ann"}'
  filterctl compile --entity user --dialect postgres --file filter.json
  echo '{"field":"age","operator":"less","value":30}' | filterctl compile --entity user --file -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readFilter(cmd, args, file)
			if err != nil {
				return err
			}
			if isBlank(data) {
				return fmt.Errorf("no filter given")
			}
			node, err := filter.ParseJSON(data, true)
			if err != nil {
				return err
			}

			oracle, err := a.oracle()
			if err != nil {
				return err
			}
			engine, err := a.engine(oracle)
			if err != nil {
				return err
			}
			q := filter.NewQuery(entity, alias)

			var res compileResult
			switch d := filter.DialectName(dialect); d {
			case filter.DialectDQL:
				res, err = compileDQL(engine, q, node, a.cfg.Level())
			case filter.DialectSQLite, filter.DialectMySQL, filter.DialectPostgres:
				res, err = compileSelect(engine, store.NewBuilder(oracle, d), q, node, a.cfg.Level())
			default:
				return fmt.Errorf("unknown dialect %q", dialect)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&entity, "entity", "e", "", "entity the filter applies to")
	cmd.Flags().StringVarP(&alias, "alias", "a", "t", "alias of the root entity")
	cmd.Flags().StringVarP(&dialect, "dialect", "d", string(filter.DialectDQL), "output dialect: dql, sqlite, mysql or postgres")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the filter from a file, - for stdin")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func compileDQL(engine *filter.Engine, q *filter.Query, node filter.Node, level filter.Level) (compileResult, error) {
	c, err := engine.Compile(node, q, level)
	if err != nil {
		return compileResult{}, err
	}
	res := compileResult{Denied: c.Denied(), Errors: nodeErrors(c.Result)}
	if c.Denied() {
		return res, nil
	}
	if res.SQL, err = c.DQL(); err != nil {
		return compileResult{}, err
	}
	res.Params = make(map[string]any, len(c.Params))
	for _, p := range c.Params {
		res.Params[p.Name] = p.Value
	}
	for _, j := range c.Joins {
		res.Joins = append(res.Joins, fmt.Sprintf("%s JOIN %s %s", j.Kind, j.Expression(), j.Alias))
	}
	return res, nil
}

func compileSelect(engine *filter.Engine, builder *store.Builder, q *filter.Query, node filter.Node, level filter.Level) (compileResult, error) {
	result, err := engine.ApplyNode(q, node, level)
	if err != nil {
		return compileResult{}, err
	}
	if err := q.Resolve(); err != nil {
		return compileResult{}, err
	}
	sb, err := builder.Select(q)
	if err != nil {
		return compileResult{}, err
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return compileResult{}, err
	}
	return compileResult{
		SQL:    sql,
		Args:   args,
		Denied: !result.Valid(),
		Errors: nodeErrors(result),
	}, nil
}

func nodeErrors(res *filter.Result) []nodeError {
	var out []nodeError
	for _, ne := range res.Errors() {
		out = append(out, nodeError{Path: ne.Path, Message: ne.Message})
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
