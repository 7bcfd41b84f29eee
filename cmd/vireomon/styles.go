// Shared lipgloss styling for vireomon, grounded on jdiag's
// internal/tui/styles.go palette and naming: the same semantic
// critical/warning/good/info/muted color roles, reused here for thread
// liveness and class-loader cache health instead of JVM heap/GC health.
package main

import "github.com/charmbracelet/lipgloss"

var (
	criticalColor = lipgloss.Color("#CC3333")
	warningColor  = lipgloss.Color("#FF8800")
	goodColor     = lipgloss.Color("#228B22")
	infoColor     = lipgloss.Color("#4682B4")
	mutedColor    = lipgloss.Color("#888888")
	borderColor   = lipgloss.Color("#666666")
)

var (
	criticalStyle = lipgloss.NewStyle().Foreground(criticalColor).Bold(true)
	warningStyle  = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	goodStyle     = lipgloss.NewStyle().Foreground(goodColor).Bold(true)
	infoStyle     = lipgloss.NewStyle().Foreground(infoColor)
	mutedStyle    = lipgloss.NewStyle().Foreground(mutedColor)
)

var (
	tabActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(infoColor).
			Padding(0, 1).
			Bold(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Padding(0, 1)
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)
)

// stateStyle picks the liveness color a thread row renders in, the same
// severity-to-color convention jdiag's GetSeverityStyle applies to
// heap/GC metrics.
func stateStyle(alive bool) lipgloss.Style {
	if alive {
		return goodStyle
	}
	return mutedStyle
}
