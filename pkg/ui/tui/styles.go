package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	errorRed    = lipgloss.Color("#FF0000")
	screenBg    = lipgloss.Color("#0A0E27")
	panelBg     = lipgloss.Color("#1A1E37")
	dimWhite    = lipgloss.Color("#B0B0B0")
	faintGrey   = lipgloss.Color("#666666")

	// levelColors colors the level tag of a log line; unknown levels are dim.
	levelColors = map[string]lipgloss.Color{
		"ERROR":   errorRed,
		"WARN":    neonOrange,
		"SUCCESS": neonGreen,
		"INFO":    neonCyan,
	}
)

var (
	screenStyle = lipgloss.NewStyle().Background(screenBg).Foreground(dimWhite)
	bannerStyle = lipgloss.NewStyle().Foreground(neonCyan).Bold(true).Padding(1, 0).Align(lipgloss.Center)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(neonMagenta).
			Background(panelBg).
			Padding(1, 2)
	panelTitleStyle = lipgloss.NewStyle().Background(neonMagenta).Foreground(screenBg).Bold(true).Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(neonCyan).Bold(true)
	valueStyle = lipgloss.NewStyle().Foreground(neonYellow)

	installedStyle = lipgloss.NewStyle().Foreground(neonGreen).Bold(true)
	failedStyle    = lipgloss.NewStyle().Foreground(errorRed).Bold(true)
	stoppingStyle  = lipgloss.NewStyle().Foreground(neonOrange).Bold(true)

	logTimeStyle = lipgloss.NewStyle().Foreground(faintGrey)
	logTextStyle = lipgloss.NewStyle().Foreground(dimWhite)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Padding(1, 0, 0, 2)
)

func levelColor(level string) lipgloss.Color {
	if c, ok := levelColors[level]; ok {
		return c
	}
	return dimWhite
}
