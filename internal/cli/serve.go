package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fy0/filterable"
	"github.com/fy0/filterable/api"
	"github.com/fy0/filterable/store"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve filtered entity listings over HTTP",
		Long: `Starts the HTTP API on the configured address. The catalog is reloaded
on change when catalog.watch is set.

Examples:
  filterctl serve -c config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	oracle, err := a.oracle()
	if err != nil {
		return err
	}
	engine, err := a.engine(oracle)
	if err != nil {
		return err
	}

	var rbac *filterable.RBAC[string]
	if a.cfg.RBAC.Enabled() {
		if rbac, err = a.cfg.RBAC.Build(); err != nil {
			return err
		}
	}

	st, err := store.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN, oracle)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := api.NewServer(api.Config{
		Addr:            a.cfg.Server.Addr,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		Transport:       a.cfg.Transport(),
		Level:           a.cfg.Level(),
		Alias:           "t",
		PerPage:         a.cfg.Filter.PerPage,
		MaxPerPage:      a.cfg.Filter.MaxPerPage,
		RoleHeader:      a.cfg.Filter.RoleHeader,
		DefaultRoles:    a.cfg.Filter.Roles,
		UserHeader:      a.cfg.RBAC.UserHeader,
	}, a.logger, engine, st, rbac)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.cfg.Catalog.Watch {
		g.Go(func() error {
			if err := oracle.Watch(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	return g.Wait()
}
