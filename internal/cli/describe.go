package cli

import (
	"github.com/spf13/cobra"
)

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [entity]",
		Short: "Describe filterable fields",
		Long: `Prints the filterable fields of an entity with their input types and
operators as JSON. Without an entity the catalog's entities are listed.

Examples:
  filterctl describe --catalog catalog.yaml
  filterctl describe --catalog catalog.yaml user`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oracle, err := a.oracle()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"entities": oracle.Entities()})
			}

			engine, err := a.engine(oracle)
			if err != nil {
				return err
			}
			defs, err := engine.Definitions(args[0], a.cfg.Level())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"entity": args[0], "definitions": defs})
		},
	}
}
