package mapview

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

// SnapshotOptions controls static map export.
type SnapshotOptions struct {
	Path   string // Output path; format inferred from extension when Format empty
	Format string // "svg" or "png"
	Title  string
	Width  int
	Height int
}

const (
	snapshotMargin = 24
	snapshotHeader = 40
	backdropHex    = "#f9fafb"
	textHex        = "#111111"
	subtleHex      = "#666666"
	heatHotHex     = "#d97706"
	heatColdHex    = "#16a34a"
)

func (o SnapshotOptions) withDefaults() SnapshotOptions {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	if o.Title == "" {
		o.Title = "Arboles"
	}
	return o
}

// SaveSnapshot renders the layer to a PNG or SVG file.
func SaveSnapshot(layer Layer, opts SnapshotOptions) error {
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.Path)), ".")
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	file, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	if format == "png" {
		return WritePNG(file, layer, opts)
	}
	return WriteSVG(file, layer, opts)
}

// dot is one projected point in pixel space.
type dot struct {
	X, Y   float64
	R      float64
	Color  string
	Alpha  float64
	Marker bool
}

type frame struct {
	opts   SnapshotOptions
	dots   []dot
	legend []legendEntry
}

type legendEntry struct {
	Label string
	Color string
}

func legendFor(mode Mode) []legendEntry {
	if mode == Heatmap {
		return []legendEntry{{"Malo", heatHotHex}, {"Otros", heatColdHex}}
	}
	return []legendEntry{
		{"Saludable", ColorHealthy},
		{"Regular", ColorRegular},
		{"Malo", ColorPoor},
		{"Muerto", ColorDead},
	}
}

// project maps lat/lng into the drawing area with an equirectangular fit over
// the bounding box of the layer.
func project(layer Layer, opts SnapshotOptions) frame {
	opts = opts.withDefaults()
	f := frame{opts: opts, legend: legendFor(layer.Mode)}

	type pt struct {
		lat, lng float64
		color    string
		alpha    float64
		marker   bool
	}
	pts := make([]pt, 0, len(layer.Markers)+len(layer.Points))
	for _, m := range layer.Markers {
		pts = append(pts, pt{lat: m.Lat, lng: m.Lng, color: m.Color, alpha: 1, marker: true})
	}
	for _, p := range layer.Points {
		c := heatColdHex
		if p.Weight >= PoorWeight {
			c = heatHotHex
		}
		alpha := p.Weight
		if layer.Heat != nil {
			alpha = math.Max(layer.Heat.MinOpacity, p.Weight*0.6)
		}
		pts = append(pts, pt{lat: p.Lat, lng: p.Lng, color: c, alpha: alpha})
	}
	if len(pts) == 0 {
		return f
	}

	minLat, maxLat := pts[0].lat, pts[0].lat
	minLng, maxLng := pts[0].lng, pts[0].lng
	for _, p := range pts[1:] {
		minLat, maxLat = math.Min(minLat, p.lat), math.Max(maxLat, p.lat)
		minLng, maxLng = math.Min(minLng, p.lng), math.Max(maxLng, p.lng)
	}
	spanLat := math.Max(maxLat-minLat, 1e-6)
	spanLng := math.Max(maxLng-minLng, 1e-6)

	w := float64(opts.Width - 2*snapshotMargin)
	h := float64(opts.Height - 2*snapshotMargin - snapshotHeader)

	radius := 5.0
	if layer.Mode == Heatmap {
		radius = 8
		if layer.Heat != nil && layer.Heat.Radius > 0 {
			radius = layer.Heat.Radius / 3
		}
	}

	f.dots = make([]dot, 0, len(pts))
	for _, p := range pts {
		f.dots = append(f.dots, dot{
			X:      snapshotMargin + (p.lng-minLng)/spanLng*w,
			Y:      snapshotMargin + snapshotHeader + (maxLat-p.lat)/spanLat*h,
			R:      radius,
			Color:  p.color,
			Alpha:  p.alpha,
			Marker: p.marker,
		})
	}
	return f
}

func (f frame) summary(layer Layer) string {
	return fmt.Sprintf("%s  mode: %s  zoom: %g  points: %d", f.opts.Title, layer.Mode, layer.Zoom, layer.Count)
}

// WritePNG rasterizes the layer.
func WritePNG(w io.Writer, layer Layer, opts SnapshotOptions) error {
	f := project(layer, opts)
	dc := gg.NewContext(f.opts.Width, f.opts.Height)
	dc.SetHexColor(backdropHex)
	dc.Clear()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetHexColor(textHex)
	dc.DrawStringAnchored(f.summary(layer), snapshotMargin, snapshotMargin+8, 0, 0.5)
	for i, e := range f.legend {
		x := float64(snapshotMargin + i*90)
		dc.SetHexColor(e.Color)
		dc.DrawRectangle(x, snapshotMargin+20, 10, 10)
		dc.Fill()
		dc.SetHexColor(subtleHex)
		dc.DrawStringAnchored(e.Label, x+14, snapshotMargin+25, 0, 0.5)
	}

	for _, d := range f.dots {
		r, g, b := hexRGB(d.Color)
		dc.SetRGBA(r, g, b, d.Alpha)
		dc.DrawCircle(d.X, d.Y, d.R)
		dc.Fill()
		if d.Marker {
			dc.SetHexColor(textHex)
			dc.SetLineWidth(1)
			dc.DrawCircle(d.X, d.Y, d.R)
			dc.Stroke()
		}
	}
	return dc.EncodePNG(w)
}

// WriteSVG writes the layer as an SVG document.
func WriteSVG(w io.Writer, layer Layer, opts SnapshotOptions) error {
	f := project(layer, opts)
	canvas := svg.New(w)
	canvas.Start(f.opts.Width, f.opts.Height)
	canvas.Rect(0, 0, f.opts.Width, f.opts.Height, "fill:"+backdropHex)
	canvas.Text(snapshotMargin, snapshotMargin+12, f.summary(layer),
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", textHex))
	for i, e := range f.legend {
		x := snapshotMargin + i*90
		canvas.Rect(x, snapshotMargin+20, 10, 10, "fill:"+e.Color)
		canvas.Text(x+14, snapshotMargin+29, e.Label,
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", subtleHex))
	}

	for _, d := range f.dots {
		style := fmt.Sprintf("fill:%s;fill-opacity:%.2f", d.Color, d.Alpha)
		if d.Marker {
			style += fmt.Sprintf(";stroke:%s;stroke-width:1", subtleHex)
		}
		canvas.Circle(int(math.Round(d.X)), int(math.Round(d.Y)), int(math.Round(d.R)), style)
	}
	canvas.End()
	return nil
}

func hexRGB(hex string) (float64, float64, float64) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(strings.TrimPrefix(hex, "#"), "%02x%02x%02x", &r, &g, &b); err != nil {
		return 0, 0, 0
	}
	return float64(r) / 255, float64(g) / 255, float64(b) / 255
}
