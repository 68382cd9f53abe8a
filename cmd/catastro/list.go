package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/protoarbol/catastro/filter"
	"github.com/protoarbol/catastro/trees"
)

// filterFlags adds --species and --estado to cmd.
func filterFlags(cmd *cobra.Command, c *filter.Criteria) {
	cmd.Flags().StringVar(&c.Species, "species", "", "only trees whose species or common name contains this text")
	cmd.Flags().StringVar(&c.Health, "estado", "", "only trees in this health state")
}

// working returns the filtered working set.
func (a *app) working(c filter.Criteria) []trees.Tree {
	records := a.ctrl.Cache().Snapshot().Records()
	return filter.Apply(records, c, filter.WithLegacyHealth(a.cfg.Filter.LegacyHealthFallback))
}

func newListCmd(a *app) *cobra.Command {
	var (
		criteria filter.Criteria
		asJSON   bool
		species  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trees, newest first",
		Long: `List the inventory.

Examples:
  catastro list
  catastro list --species peumo --estado Malo
  catastro list --species-options`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			records := a.working(criteria)

			if species {
				for _, s := range filter.SpeciesOptions(a.ctrl.Cache().Snapshot().Records()) {
					fmt.Fprintln(a.out, s)
				}
				return nil
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			fmt.Fprintln(a.out, renderTable(records, a.cfg.Filter.LegacyHealthFallback))
			fmt.Fprintf(a.out, "%d árboles\n", len(records))
			return nil
		},
	}
	filterFlags(cmd, &criteria)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	cmd.Flags().BoolVar(&species, "species-options", false, "print the distinct species instead")
	return cmd
}

func renderTable(records []trees.Tree, legacy bool) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Nombre", "Especie", "Edad", "Estado", "Lat", "Lng")
	for _, r := range records {
		health := r.HealthValue(legacy)
		if health == "" {
			health = string(trees.Unknown)
		}
		t.Row(
			strconv.FormatInt(r.ID, 10),
			r.CommonName,
			r.Species,
			r.Age.String(),
			health,
			strconv.FormatFloat(r.Lat, 'f', 5, 64),
			strconv.FormatFloat(r.Lng, 'f', 5, 64),
		)
	}
	return t.String()
}
