package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/secondary text color
	Warn    lipgloss.Color // Warning color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#f0883e"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Sentence lipgloss.Style
	Dim      lipgloss.Style
	Warn     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Sentence: lipgloss.NewStyle().Foreground(t.Primary),
		Dim:      lipgloss.NewStyle().Foreground(t.Dim),
		Warn:     lipgloss.NewStyle().Foreground(t.Warn),
	}
}

// SentenceLine renders a numbered sentence for the live narration view.
func (s Styles) SentenceLine(index int, text string) string {
	return s.Label.Render(fmt.Sprintf("[%d]", index)) + " " + s.Sentence.Render(text)
}

// VisemeLine renders a single viseme event for the live narration view.
func (s Styles) VisemeLine(offsetMs int, shape string, weight float64) string {
	return s.Dim.Render(fmt.Sprintf("    %6s  %-12s %.2f", FormatDuration(offsetMs), shape, weight))
}
