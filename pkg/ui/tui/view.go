package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const visibleLogLines = 10

// View renders the entire TUI
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.renderLogo(),
		m.renderProgressPanel(),
		m.renderLogsPanel(),
	}

	if m.done && m.result != nil {
		sections = append(sections, m.renderSummary())
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, hintStyle.Render("s skip • q stop • ? help"))
	}

	return screenStyle.Width(m.width).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m Model) renderLogo() string {
	logo := `
╔═══════════════════════════════════════════════════╗
║  ___ ___ _____ _   _ ___  ___ _   _ _  _  ___     ║
║ / __| __|_   _| | | | _ \/ __| | | | \| |/ __|    ║
║ \__ \ _|  | | | |_| |  _/\__ \ |_| | .' | (__     ║
║ |___/___| |_|  \___/|_|  |___/\__, |_|\_|\___|    ║
║                               |___/               ║
╚═══════════════════════════════════════════════════╝`

	return bannerStyle.Width(m.width).Render(logo)
}

func (m Model) renderProgressPanel() string {
	title := panelTitleStyle.Render(" PROGRESS ")

	var line string
	if m.state.Indeterminate {
		label := m.state.Label
		if label == "" {
			label = "Working..."
		}
		line = m.spinner.View() + " " + label
	} else {
		line = fmt.Sprintf("%s %s",
			m.bar.ViewAs(m.Percent()),
			valueStyle.Render(fmt.Sprintf("%d/%d", m.state.Value, m.state.Max)),
		)
	}

	stats := []string{
		line,
		"",
		fmt.Sprintf("%s %s", labelStyle.Render("Installed:"), installedStyle.Render(fmt.Sprintf("%d", m.installed))),
		fmt.Sprintf("%s %s", labelStyle.Render("Failed:"), failedStyle.Render(fmt.Sprintf("%d", m.failed))),
		fmt.Sprintf("%s %s", labelStyle.Render("Elapsed:"), valueStyle.Render(formatDuration(time.Since(m.startTime)))),
	}

	switch {
	case m.done:
		stats = append(stats, installedStyle.Render("✓ FINISHED"))
	case m.signals.Stopped():
		stats = append(stats, stoppingStyle.Render("■ STOPPING"))
	}

	return panelStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(stats, "\n")),
	)
}

func (m Model) renderLogsPanel() string {
	title := panelTitleStyle.Render(" LOG ")

	start := max(len(m.logMessages)-visibleLogLines, 0)
	maxMsgLen := max(m.width-30, 20)

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimeStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		msg := log.Message
		if len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logTextStyle.Render(msg)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	return panelStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m Model) renderSummary() string {
	title := panelTitleStyle.Render(" SUMMARY ")
	r := m.result

	var lines []string
	switch {
	case r.Error != "":
		lines = append(lines, failedStyle.Render("Sync failed: "+r.Error))
	case r.NothingFound():
		lines = append(lines, stoppingStyle.Render("No eligible setups found"))
	default:
		lines = append(lines, fmt.Sprintf("Downloaded %d of %d setups", len(r.Processed), r.Found))
		for _, f := range r.Failed {
			lines = append(lines, failedStyle.Render("✗ ")+f.Link+" ("+f.Message+")")
		}
	}
	if r.Stopped {
		lines = append(lines, stoppingStyle.Render("Stopped before the end of the list"))
	}

	return panelStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m Model) renderHelp() string {
	help := `
  Controls:
    s/S      - Skip the current setup
    q/Q      - Stop after the current step, quit once finished
    ctrl+c   - Stop, press again to force quit
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Status Indicators:
    ` + installedStyle.Render("Green") + `    - Installed
    ` + stoppingStyle.Render("Orange") + `   - Skipped/Stopping
    ` + failedStyle.Render("Red") + `      - Failed
`

	return panelStyle.Width(m.width - 4).Render(help)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
