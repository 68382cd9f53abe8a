package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const barWidth = 30

var cardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#16a34a")).
	Padding(0, 2)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#16a34a"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	healthColor = map[string]string{
		"Saludable": "#16a34a",
		"Regular":   "#dcd926",
		"Malo":      "#d97706",
		"Muerto":    "#dc2626",
	}
)

func card(label, value string) string {
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render(label),
		titleStyle.Render(value),
	))
}

func bars(title string, buckets []Bucket, total int, colorFor func(string) lipgloss.Style) string {
	width := 0
	for _, b := range buckets {
		if len(b.Name) > width {
			width = len(b.Name)
		}
	}
	lines := []string{titleStyle.Render(title)}
	for _, b := range buckets {
		n := 0
		if total > 0 {
			n = b.Count * barWidth / total
		}
		if n == 0 && b.Count > 0 {
			n = 1
		}
		lines = append(lines, fmt.Sprintf("%-*s %s %d",
			width, b.Name, colorFor(b.Name).Render(strings.Repeat("█", n)), b.Count))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Render draws the summary as KPI cards and bar rows.
func Render(s Summary) string {
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total de árboles", fmt.Sprintf("%d", s.Total)),
		card("Especies", fmt.Sprintf("%d", len(s.BySpecies))),
		card("Edad promedio", fmt.Sprintf("%.1f años", s.AverageAge)),
	)
	species := bars("Por especie", s.SpeciesSeries(), s.Total, func(string) lipgloss.Style { return barStyle })
	health := bars("Por estado", s.HealthSeries(), s.Total, func(name string) lipgloss.Style {
		if c, ok := healthColor[name]; ok {
			return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		}
		return labelStyle
	})
	return lipgloss.JoinVertical(lipgloss.Left, cards, "", species, "", health)
}

// RenderDashboard writes Render(s) followed by a newline.
func RenderDashboard(w io.Writer, s Summary) error {
	_, err := io.WriteString(w, Render(s)+"\n")
	return err
}
