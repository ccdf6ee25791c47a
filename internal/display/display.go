package display

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/FinCortex/internal/models"
)

const width = 80

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1).
			Width(width)

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	recommendationStyles = map[string]lipgloss.Style{
		"Buy":  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")),
		"Hold": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B")),
		"Sell": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
	}
)

var recommendationPattern = regexp.MustCompile(`(?i)recommendation\W{0,4}:?\W{0,4}(buy|hold|sell)\b`)

// ExtractRecommendation returns "Buy", "Hold" or "Sell" from the first
// "Recommendation:" line of a synthesis note, or "" when the model did not
// follow the format. The token is informational only.
func ExtractRecommendation(synthesis string) string {
	m := recommendationPattern.FindStringSubmatch(synthesis)
	if m == nil {
		return ""
	}
	word := strings.ToLower(m[1])
	return strings.ToUpper(word[:1]) + word[1:]
}

// ResultsDisplay renders analysis reports for the terminal.
type ResultsDisplay struct {
	// Verbose adds the research, market and news stage outputs.
	Verbose bool
}

func (d ResultsDisplay) Render(report *models.AnalysisReport) string {
	if report == nil {
		return mutedStyle.Render("(no report)")
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("FinCortex analysis: %s", report.Company)))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Query: %s | k=%d | %s", report.Query, report.K, report.Duration.Round(time.Millisecond))))
	b.WriteString("\n\n")

	rec := ExtractRecommendation(report.Synthesis)
	if style, ok := recommendationStyles[rec]; ok {
		b.WriteString(style.Render("Recommendation: " + rec))
	} else {
		b.WriteString(warnStyle.Render("Recommendation: not stated"))
	}
	b.WriteString("\n\n")

	b.WriteString(section("Risk", renderRisk(report.Risk)))
	if d.Verbose {
		b.WriteString(section("Research", report.Research))
		b.WriteString(section("Market", report.Market))
		b.WriteString(section("News", report.News))
	}
	b.WriteString(section("Analyst note", report.Synthesis))
	b.WriteString(mutedStyle.Render("This analysis is for informational purposes only and is not financial advice."))
	b.WriteString("\n")
	return b.String()
}

func (d ResultsDisplay) Print(w io.Writer, report *models.AnalysisReport) error {
	_, err := io.WriteString(w, d.Render(report))
	return err
}

func renderRisk(r models.RiskResult) string {
	a := r.Assessment
	var b strings.Builder
	fmt.Fprintf(&b, "Score: %d/100  Confidence: %s  Flag: %s\n", a.RiskScore, a.ConfidenceLevel, a.QuantitativeFlag)
	for _, d := range a.RiskDrivers {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	if r.IsFallback() {
		b.WriteString(warnStyle.Render(r.Error))
	}
	return strings.TrimRight(b.String(), "\n")
}

func section(title, body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		body = mutedStyle.Render("(no data available)")
	}
	return sectionStyle.Render(headingStyle.Render(title)+"\n"+body) + "\n"
}
