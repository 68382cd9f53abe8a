package main

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/protoarbol/catastro/filter"
	"github.com/protoarbol/catastro/mapview"
)

func newMapCmd(a *app) *cobra.Command {
	var (
		criteria filter.Criteria
		zoom     float64
		format   string
		output   string
		opts     mapview.SnapshotOptions
	)
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Render the map layer for a zoom level",
		Long: `Build the layer the map shows at --zoom: individual markers at or above
the heatmap threshold, weighted density points below it.

Examples:
  catastro map --zoom 16
  catastro map --zoom 13 --format geojson > arboles.geojson
  catastro map --zoom 14 --output concepcion.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			viewport := mapview.NewViewport(zoom, a.cfg.Map.HeatmapZoomThreshold, a.cfg.Map.MinZoom, a.cfg.Map.MaxZoom)
			settings := a.cfg.MapSettings()
			layer := mapview.Build(a.working(criteria), viewport.Zoom(), settings)
			a.logger.Debug("layer built", "mode", layer.Mode, "zoom", layer.Zoom, "count", layer.Count)

			if output != "" {
				opts.Path = output
				opts.Format = format
				if err := mapview.SaveSnapshot(layer, opts); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s: %d %s\n", output, layer.Count, layer.Mode)
				return nil
			}

			switch strings.ToLower(format) {
			case "", "json":
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(layer)
			case "geojson":
				return mapview.WriteGeoJSON(a.out, layer)
			case "svg":
				return mapview.WriteSVG(a.out, layer, opts)
			case "png":
				return mapview.WritePNG(a.out, layer, opts)
			}
			return fmt.Errorf("unknown format %q: use json, geojson, svg or png", format)
		},
	}
	filterFlags(cmd, &criteria)
	cmd.Flags().Float64VarP(&zoom, "zoom", "z", mapview.DefaultMinZoom, "map zoom level")
	cmd.Flags().StringVar(&format, "format", "", "json, geojson, svg or png (default json, or from the --output extension)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write an svg or png snapshot to this file")
	cmd.Flags().StringVar(&opts.Title, "title", "", "snapshot title")
	cmd.Flags().IntVar(&opts.Width, "width", 0, "snapshot width in pixels")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "snapshot height in pixels")
	return cmd
}
