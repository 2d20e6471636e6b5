// Package ui renders terminal output for the benchmark CLI.
package ui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by the CLI renderers.
type Styles struct {
	Title lipgloss.Style
	Bold  lipgloss.Style
	Body  lipgloss.Style
	Muted lipgloss.Style

	Good lipgloss.Style
	Warn lipgloss.Style
	Bad  lipgloss.Style
}

// DefaultStyles returns the standard terminal styling.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Bold:  lipgloss.NewStyle().Bold(true),
		Body:  lipgloss.NewStyle(),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Good:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Bad:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// ScoreStyle picks a color band for a 0-100 score.
func (s Styles) ScoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 75:
		return s.Good
	case score >= 40:
		return s.Warn
	default:
		return s.Bad
	}
}
