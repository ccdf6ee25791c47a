package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(80)

	// Status styles
	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func printHeader(w io.Writer, text string) {
	fmt.Fprintln(w, headerStyle.Render(text))
}

func printStep(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, inProgressStyle.Render("» "+fmt.Sprintf(format, args...)))
}

func printDone(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, completedStyle.Render("✔ "+fmt.Sprintf(format, args...)))
}

func printWarn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, errorStyle.Render("✘ "+fmt.Sprintf(format, args...)))
}

// field prints an aligned "label: value" line.
func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%-22s %v\n", label+":", value)
}

func configured(ok bool) string {
	if ok {
		return completedStyle.Render("configured")
	}
	return pendingStyle.Render("not configured")
}
