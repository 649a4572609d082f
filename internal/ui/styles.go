package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary = lipgloss.Color("#7C3AED") // Purple

	ColorSuccess = lipgloss.Color("#10B981") // Green
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorInfo    = lipgloss.Color("#3B82F6") // Blue

	// Review request states
	ColorOpen   = lipgloss.Color("#10B981")
	ColorDraft  = lipgloss.Color("#F59E0B")
	ColorMerged = lipgloss.Color("#8B5CF6")
	ColorClosed = lipgloss.Color("#6B7280")
	ColorLocal  = lipgloss.Color("#9CA3AF")

	ColorTextMuted  = lipgloss.Color("#9CA3AF")
	ColorTextBright = lipgloss.Color("#FFFFFF")
	ColorBorder     = lipgloss.Color("#374151")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	BoldStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTextBright)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	CurrentMarkerStyle = lipgloss.NewStyle().
				Foreground(ColorSuccess).
				Bold(true)
)

// Message styles
var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)
)

// Table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorTextBright).
				Padding(0, 1)

	TableCellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	TableBorderStyle = lipgloss.NewStyle().
				Foreground(ColorBorder)
)

// StateStyle returns the style for a review request state, or for an entry
// that has no review request yet
func StateStyle(state string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(stateColor(state))
}

func stateColor(state string) lipgloss.Color {
	switch state {
	case "open", "created", "updated", "mapped":
		return ColorOpen
	case "draft", "queued", "would-map", "would-assign-id":
		return ColorDraft
	case "merged", "assigned-id", "rewritten":
		return ColorMerged
	case "closed", "skipped", "unchanged":
		return ColorClosed
	case "blocked", "error":
		return ColorError
	default:
		return ColorLocal
	}
}

// StateIcon returns a one-character marker for a review request state
func StateIcon(state string) string {
	var icon string
	switch state {
	case "open":
		icon = "●"
	case "draft":
		icon = "◐"
	case "merged":
		icon = "✓"
	case "closed":
		icon = "✗"
	default:
		icon = "○"
	}
	return StateStyle(state).Render(icon)
}
