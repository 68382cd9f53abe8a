package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/protoarbol/catastro/cache"
	"github.com/protoarbol/catastro/config"
	"github.com/protoarbol/catastro/internal/logging"
	"github.com/protoarbol/catastro/internal/storeopen"
	"github.com/protoarbol/catastro/reconcile"
)

// app is built once per invocation by the root command.
type app struct {
	cfg    config.Config
	store  *storeopen.Opened
	ctrl   *reconcile.Controller
	logger *slog.Logger
	out    io.Writer
}

// load fills the cache from the store.
func (a *app) load(ctx context.Context) error {
	if err := a.ctrl.Refresh(ctx); err != nil {
		return fmt.Errorf("load trees: %w", err)
	}
	return nil
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var (
		configPath string
		a          = &app{out: out}
	)

	root := &cobra.Command{
		Use:   "catastro",
		Short: "Field client for the urban tree inventory",
		Long: `catastro lists, maps and edits the tree inventory.

The inventory lives in one of four stores: the API server (http), a JSON
file kept on the device (file), a local SQLite database (sqlite) or Postgres
directly (postgres). Settings come from catastro.yaml, CATASTRO_* variables
and the flags below.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFlags(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.New(cfg.Log, errOut)

			store, err := storeopen.Open(cmd.Context(), cfg.Store)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Store.Kind, err)
			}
			a.store = store
			a.ctrl = reconcile.New(store, cache.New(),
				reconcile.WithTimeout(cfg.Sync.Timeout),
				reconcile.WithRules(cfg.Rules()),
				reconcile.WithSpeciesFallback(cfg.Sync.SpeciesFallback),
				reconcile.WithLogger(a.logger),
			)
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.store == nil {
				return nil
			}
			return a.store.Close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default catastro.yaml in . or $HOME/.config/catastro)")
	pf.String("profile", "", "settings profile: server or offline")
	pf.String("store", "", "record store: http, file, sqlite or postgres")
	pf.StringP("file", "f", "", "data file for the file and sqlite stores")
	pf.String("url", "", "collection URL for the http store")
	pf.String("database-url", "", "connection string for the postgres store")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "text or json")

	root.AddCommand(
		newListCmd(a),
		newMapCmd(a),
		newStatsCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newRmCmd(a),
		newImportCmd(a),
		newSeedCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
