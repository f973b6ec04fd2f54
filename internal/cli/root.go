// Package cli implements the command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fy0/filterable/catalog"
	"github.com/fy0/filterable/config"
	"github.com/fy0/filterable/filter"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	configPath  string
	catalogPath string
	level       string

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCmd builds the filterctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "filterctl",
		Short: "Compile and run JSON filter trees",
		Long: `filterctl validates and compiles JSON filter trees against an entity
catalog, runs them against a database and serves them over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "completion", "help":
				return nil
			}
			return a.load(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to the YAML configuration file")
	flags.StringVar(&a.catalogPath, "catalog", "", "path to the YAML entity catalog (overrides the configuration)")
	flags.StringVar(&a.level, "level", "", "validation level: node, value or all (overrides the configuration)")

	rootCmd.AddCommand(
		newCompileCmd(a),
		newDescribeCmd(a),
		newQueryCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootCmd := NewRootCmd()
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

func (a *app) load(stderr io.Writer) error {
	a.cfg = config.Default()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.catalogPath != "" {
		a.cfg.Catalog.Path = a.catalogPath
	}
	if a.level != "" {
		if _, err := filter.ParseLevel(a.level); err != nil {
			return err
		}
		a.cfg.Filter.Level = a.level
	}

	var w io.Writer
	if a.cfg.Logger.Output == "" || a.cfg.Logger.Output == "stderr" {
		w = stderr
	}
	logger, err := a.cfg.Logger.NewLogger(w)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) oracle() (*catalog.FileOracle, error) {
	if a.cfg.Catalog.Path == "" {
		return nil, errors.New("no catalog configured, use --catalog or catalog.path")
	}
	return catalog.NewFileOracle(a.cfg.Catalog.Path, a.logger)
}

func (a *app) engine(oracle filter.MetadataOracle) (*filter.Engine, error) {
	return filter.NewEngine(oracle,
		filter.WithLogger(a.logger),
		filter.WithTranslations(a.cfg.Filter.Locale),
	)
}

// readFilter returns the filter given as argument, read from file, or read
// from stdin when file is "-". An empty result means no filter.
func readFilter(cmd *cobra.Command, args []string, file string) ([]byte, error) {
	switch {
	case len(args) > 0:
		return []byte(args[0]), nil
	case file == "-":
		return io.ReadAll(cmd.InOrStdin())
	case file != "":
		return os.ReadFile(file)
	default:
		return nil, nil
	}
}

func isBlank(data []byte) bool {
	return strings.TrimSpace(string(data)) == ""
}
