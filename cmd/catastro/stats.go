package main

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/protoarbol/catastro/cache"
	"github.com/protoarbol/catastro/filter"
	"github.com/protoarbol/catastro/internal/filestore"
	"github.com/protoarbol/catastro/stats"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		criteria filter.Criteria
		asJSON   bool
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show counts by species and health and the average age",
		Long: `Aggregate the inventory for the dashboard.

With --watch on the file store the dashboard is redrawn whenever the data
file changes, for example after a sync from another device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.load(ctx); err != nil {
				return err
			}

			render := func() error {
				summary := stats.Aggregate(a.working(criteria))
				if asJSON {
					return json.NewEncoder(a.out).Encode(summary)
				}
				return stats.RenderDashboard(a.out, summary)
			}
			if err := render(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			fs, ok := a.store.RecordStore.(*filestore.Store)
			if !ok {
				return errors.New("--watch needs the file store")
			}
			unsubscribe := a.ctrl.Cache().Subscribe(func(cache.Snapshot) {
				if err := render(); err != nil {
					a.logger.Warn("render dashboard", "err", err)
				}
			})
			defer unsubscribe()

			return fs.Watch(ctx, func() {
				if err := a.ctrl.Refresh(ctx); err != nil {
					a.logger.Warn("reload after change", "err", err)
				}
			}, func(err error) {
				a.logger.Warn("watch data file", "err", err)
			})
		},
	}
	filterFlags(cmd, &criteria)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "redraw when the data file changes (file store)")
	return cmd
}
