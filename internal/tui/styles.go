package tui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	ColorPrimary = lipgloss.Color("#7C3AED")
	ColorSuccess = lipgloss.Color("#10B981")
	ColorFailure = lipgloss.Color("#EF4444")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorInfo    = lipgloss.Color("#3B82F6")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorBorder  = lipgloss.Color("#374151")
	ColorText    = lipgloss.Color("#E5E7EB")
)

// severityColors maps normalized severity names to their foreground color.
var severityColors = map[string]lipgloss.Color{
	"TRACE": lipgloss.Color("240"),
	"DEBUG": lipgloss.Color("244"),
	"INFO":  lipgloss.Color("39"),
	"WARN":  lipgloss.Color("208"),
	"ERROR": lipgloss.Color("196"),
	"FATAL": lipgloss.Color("201"),
}

var (
	StylePane = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StylePaneFocused = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary)

	StylePaneError = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorFailure)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	StyleMuted = lipgloss.NewStyle().Foreground(ColorMuted)

	StyleGutter = lipgloss.NewStyle().Foreground(ColorMuted)

	// StyleMatch highlights the regex spans inside a log line.
	StyleMatch = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorFailure).
			Bold(true)

	// StyleSelected marks the log line of the selected match.
	StyleSelected = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FCD34D")).
			Background(lipgloss.Color("#78350F"))

	StyleQueryError = lipgloss.NewStyle().Foreground(ColorFailure)

	StyleStatusBar = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(ColorBorder)

	StyleStatusKey = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Background(ColorBorder).
			Bold(true)

	StyleFollow = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Background(ColorBorder).
			Bold(true)

	StyleDensity = lipgloss.NewStyle().Foreground(ColorFailure)
)

// severityStyle returns the style used to draw a line of the given
// severity. Unknown severities use the default foreground.
func severityStyle(sev string) lipgloss.Style {
	if c, ok := severityColors[sev]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return lipgloss.NewStyle()
}
