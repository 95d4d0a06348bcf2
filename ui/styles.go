// Package ui holds BindKit's one in-scope presentation adapter: the popup
// launcher. The tray icon, settings dialog, update checker, and theme
// loader are out of scope per spec.md §1 and belong to the host
// application. Styling follows the teacher's lipgloss palette and panel
// conventions, adapted from score/percentage severity buckets to script
// execution-state badges.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#FF5555")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorMagenta = lipgloss.Color("#FF79C6")
	colorWhite   = lipgloss.Color("#F8F8F2")
	colorGray    = lipgloss.Color("#6272A4")
	colorPanel   = lipgloss.Color("#44475A")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorCyan).
				Padding(0, 1)

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	labelStyle    = lipgloss.NewStyle().Foreground(colorGray)
	valueStyle    = lipgloss.NewStyle().Foreground(colorWhite)
	warnStyle     = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	critStyle     = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(colorGreen)
	headerStyle   = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
	selectedStyle = lipgloss.NewStyle().Background(colorPanel).Foreground(colorWhite)
	helpStyle     = lipgloss.NewStyle().Foreground(colorGray)
	dimStyle      = lipgloss.NewStyle().Foreground(colorGray)
)

// strategyBadgeStyle colors a script row by its executability, echoing the
// teacher's scoreColor/pctColor severity-bucket helpers.
func strategyBadgeStyle(executable, needsConfiguration bool) lipgloss.Style {
	switch {
	case !executable:
		return critStyle
	case needsConfiguration:
		return warnStyle
	default:
		return okStyle
	}
}

// resultStyle colors an ExecutionResult's outcome line.
func resultStyle(success bool) lipgloss.Style {
	if success {
		return okStyle
	}
	return critStyle
}
