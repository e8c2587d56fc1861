package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF5555")
	ColorGreen   = lipgloss.Color("#50FA7B")
	ColorYellow  = lipgloss.Color("#F1FA8C")
	ColorCyan    = lipgloss.Color("#8BE9FD")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#3A3A3A")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#FF79C6")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	PlayingStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	PausedStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	FlashStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	SpeakerStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	ActiveEntryStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

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

	LinkStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Underline(true)

	AIBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta).
			Bold(true)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	FollowBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	ScrollBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)
)

// Theme bar styles. Segment cells take their background from the theme
// color; see ThemeCell.
var (
	GapCellStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	PlayheadStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	BoundaryStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	TooltipStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Background(ColorDimGray)
)

// ThemeStyle returns a text style in the theme's color.
func ThemeStyle(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// ThemeCell returns the style of a theme bar cell filled with color.
func ThemeCell(color string, hovered bool) lipgloss.Style {
	s := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	if hovered {
		s = s.Background(ColorDimGray)
	}
	return s
}
