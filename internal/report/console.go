package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/todmy/tarmac/pkg/models"
)

// DefaultConsoleLimit is the number of rules printed to the terminal
const DefaultConsoleLimit = 10

var (
	green = lipgloss.Color("#22c55e")
	blue  = lipgloss.Color("#3b82f6")
	cyan  = lipgloss.Color("#06b6d4")
)

// styles binds the console styles to the color profile of one writer
type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	label    lipgloss.Style
	panel    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().
			Foreground(green).
			Bold(true),
		subtitle: r.NewStyle().
			Foreground(blue).
			Bold(true),
		label: r.NewStyle().
			Foreground(cyan).
			Bold(true),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1),
	}
}

// Console prints the report header and the top rules as bordered panels.
// limit <= 0 prints DefaultConsoleLimit rules.
func Console(w io.Writer, report *models.Report, limit int) error {
	if limit <= 0 {
		limit = DefaultConsoleLimit
	}
	st := newStyles(w)

	display := report.Display
	if _, err := fmt.Fprintf(w, "\n%s\n%s\n\n",
		st.title.Render("📊 Model Difference Analysis"),
		st.subtitle.Render(fmt.Sprintf("Generated %d rules explaining model differences:", len(display))),
	); err != nil {
		return err
	}

	for i, rule := range display {
		if i >= limit {
			break
		}
		text := st.label.Render(fmt.Sprintf("Rule %d: ", i+1)) + rule
		if _, err := fmt.Fprintln(w, st.panel.Render(text)); err != nil {
			return err
		}
	}
	return nil
}
