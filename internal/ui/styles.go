package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/editor"
)

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF0000")
	ColorGreen   = lipgloss.Color("#00FF00")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorBlue    = lipgloss.Color("#5F87FF")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	PanelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	RangeStyle = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Bold(true)

	CandidateStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	TimelineStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	PlayheadStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)
)

var statusStyles = map[api.VideoStatus]lipgloss.Style{
	api.StatusQueued:     lipgloss.NewStyle().Foreground(ColorBlue).Bold(true),
	api.StatusProcessing: lipgloss.NewStyle().Foreground(ColorYellow).Bold(true),
	api.StatusReady:      lipgloss.NewStyle().Foreground(ColorGreen).Bold(true),
	api.StatusFailed:     lipgloss.NewStyle().Foreground(ColorRed).Bold(true),
}

var unknownStatusStyle = lipgloss.NewStyle().Foreground(ColorGray)

// StatusStyle returns the badge style for a status. Every status has one;
// values outside the enum render gray.
func StatusStyle(s api.VideoStatus) lipgloss.Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return unknownStatusStyle
}

// StatusBadge renders a status as a colored badge.
func StatusBadge(s api.VideoStatus) string {
	return StatusStyle(s).Render("● " + s.String())
}

// PhaseLabel renders the editor phase for the status bar.
func PhaseLabel(p editor.Phase) string {
	switch p {
	case editor.PhaseSubmitting, editor.PhaseProcessing:
		return SpinnerStyle.Render(p.String())
	case editor.PhaseReady:
		return StatusStyle(api.StatusReady).Render(p.String())
	case editor.PhaseFailed:
		return StatusStyle(api.StatusFailed).Render(p.String())
	}
	return DimStyle.Render(p.String())
}
