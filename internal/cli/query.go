package cli

import (
	"github.com/spf13/cobra"

	"github.com/fy0/filterable/filter"
	"github.com/fy0/filterable/store"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		entity  string
		alias   string
		file    string
		search  string
		sortBy  string
		page    int
		perPage int
	)

	cmd := &cobra.Command{
		Use:   "query [filter-json]",
		Short: "Run a filter against the database",
		Long: `Applies a filter tree, search term, sort and page to an entity and
prints the matching rows with the total count as JSON.

Examples:
  filterctl query -c config.yaml --entity user '{"field":"company.name","value":"Acme"}'
  filterctl query -c config.yaml --entity user --search ann --sort -age --per-page 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := readFilter(cmd, args, file)
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
			level := a.cfg.Level()
			q := filter.NewQuery(entity, alias)

			var errs []nodeError
			if !isBlank(data) {
				res, err := engine.ApplyJSON(q, data, level)
				if err != nil {
					return err
				}
				errs = nodeErrors(res)
				for _, ne := range errs {
					a.logger.Warn("filter rejected", "path", ne.Path, "message", ne.Message)
				}
			}
			if _, err := engine.Search(q, search, level); err != nil {
				return err
			}
			if err := engine.Sort(q, filter.ParseSort(sortBy), level); err != nil {
				return err
			}
			if perPage == 0 {
				perPage = a.cfg.Filter.PerPage
			}
			if err := filter.Paginate(q, page, min(perPage, a.cfg.Filter.MaxPerPage)); err != nil {
				return err
			}
			if err := q.Resolve(); err != nil {
				return err
			}

			st, err := store.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN, oracle)
			if err != nil {
				return err
			}
			defer st.Close()

			rows, err := st.Find(ctx, q)
			if err != nil {
				return err
			}
			total, err := st.Count(ctx, q)
			if err != nil {
				return err
			}
			if rows == nil {
				rows = []filter.MapRow{}
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"items":  rows,
				"total":  total,
				"errors": errs,
			})
		},
	}

	cmd.Flags().StringVarP(&entity, "entity", "e", "", "entity to query")
	cmd.Flags().StringVarP(&alias, "alias", "a", "t", "alias of the root entity")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the filter from a file, - for stdin")
	cmd.Flags().StringVarP(&search, "search", "s", "", "free text searched in the entity's string fields")
	cmd.Flags().StringVar(&sortBy, "sort", "", "comma separated sort fields, prefix with - for descending")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "rows per page (defaults to the configured page size)")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}
