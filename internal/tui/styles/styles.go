package styles

import "github.com/charmbracelet/lipgloss"

// Oxocarbon color scheme - IBM Carbon inspired
var (
	OxocarbonBase01 = lipgloss.Color("#393939") // Borders, secondary UI
	OxocarbonBase03 = lipgloss.Color("#767676") // Disabled/muted elements
	OxocarbonBase04 = lipgloss.Color("#dde1e6") // Secondary foreground
	OxocarbonBase05 = lipgloss.Color("#f2f4f8") // Primary foreground
	OxocarbonWhite  = lipgloss.Color("#ffffff")

	OxocarbonTeal   = lipgloss.Color("#3ddbd9")
	OxocarbonCyan   = lipgloss.Color("#33b1ff")
	OxocarbonRed    = lipgloss.Color("#ff5252")
	OxocarbonGreen  = lipgloss.Color("#42be65")
	OxocarbonPurple = lipgloss.Color("#be95ff") // main accent
	OxocarbonMauve  = lipgloss.Color("#d1aaff")
)

var (
	// App frame with a subtle border
	AppStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(OxocarbonBase01)

	// Title bar
	TitleStyle = lipgloss.NewStyle().
			Foreground(OxocarbonWhite).
			Background(OxocarbonPurple).
			Padding(0, 1).
			Bold(true)

	// Episode counter next to the title
	CounterStyle = lipgloss.NewStyle().
			Foreground(OxocarbonMauve).
			Bold(true)

	// Body text
	TextStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase05)

	// Muted metadata
	MetadataStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase04)

	// Selected quality label
	QualityActiveStyle = lipgloss.NewStyle().
				Foreground(OxocarbonPurple).
				Bold(true)

	// Unselected quality labels
	QualityStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase03)

	// Viewed badge
	ViewedStyle = lipgloss.NewStyle().
			Foreground(OxocarbonGreen).
			Bold(true)

	// Stream URL
	URLStyle = lipgloss.NewStyle().
			Foreground(OxocarbonCyan).
			Italic(true)

	// Key hints
	HelpStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase03).
			Italic(true)

	// Dimmed key hints for actions unavailable right now
	HelpDisabledStyle = lipgloss.NewStyle().
				Foreground(OxocarbonBase01).
				Italic(true)

	// Transient status line
	StatusStyle = lipgloss.NewStyle().
			Foreground(OxocarbonTeal)

	// Error status line
	ErrorStyle = lipgloss.NewStyle().
			Foreground(OxocarbonRed).
			Bold(true)
)
