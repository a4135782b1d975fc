package ui

import "github.com/charmbracelet/lipgloss"

// Color palette - using ANSI 256 colors for broad terminal support
var (
	ColorCyan   = lipgloss.Color("6")
	ColorYellow = lipgloss.Color("3")
	ColorRed    = lipgloss.Color("1")
	ColorGreen  = lipgloss.Color("2")
	ColorGray   = lipgloss.Color("8")
	ColorWhite  = lipgloss.Color("15")
	ColorBlack  = lipgloss.Color("0")
)

// Text styles
var (
	// Timestamps in log output
	TimestampStyle = lipgloss.NewStyle().Foreground(ColorCyan)

	// Log stream names
	LogStreamStyle = lipgloss.NewStyle().Foreground(ColorYellow)

	// Status messages ("Querying...", "Polling...")
	StatusStyle = lipgloss.NewStyle().Foreground(ColorGray).Italic(true)

	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorGray)

	// Highlighted/matched text
	HighlightStyle = lipgloss.NewStyle().
			Background(ColorYellow).
			Foreground(ColorBlack).
			Bold(true)

	// Labels (field names, headers)
	LabelStyle = lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)

	SectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorCyan)
)

// Cache usage bar
var (
	UsageFillStyle  = lipgloss.NewStyle().Foreground(ColorGreen)
	UsageFullStyle  = lipgloss.NewStyle().Foreground(ColorYellow)
	UsageEmptyStyle = lipgloss.NewStyle().Foreground(ColorGray)
)
