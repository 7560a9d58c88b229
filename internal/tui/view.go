package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const barLength = 20

// View renders the dashboard
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("🐳 dockermon") + "\n")
	s.WriteString(helpStyle.Render(fmt.Sprintf("writing %s, running for %s",
		m.outputFile, m.now.Sub(m.started).Truncate(time.Second))) + "\n\n")

	nameWidth := m.nameWidth()
	header := fmt.Sprintf("%-*s  %-*s  %-*s  %8s  %8s",
		nameWidth, "CONTAINER",
		barLength+9, "CPU",
		barLength+9, "MEM",
		"ROWS",
		"LAST")
	s.WriteString(headerStyle.Render(header) + "\n")

	for _, c := range m.containers {
		name := c.name
		if name == "" {
			name = c.id
		}
		name = truncate(name, nameWidth)

		if c.rows == 0 {
			s.WriteString(fmt.Sprintf("%-*s  %s\n", nameWidth, name, waitingStyle.Render("waiting for samples...")))
			continue
		}

		s.WriteString(fmt.Sprintf("%-*s  %s  %s  %8d  %8s\n",
			nameWidth, name,
			renderPercent(c.last.CPUPercent),
			renderPercent(c.last.MemoryPercent),
			c.rows,
			age(m.now.Sub(c.lastSeen)),
		))
	}

	s.WriteString(helpStyle.Render("q: quit"))

	return panelStyle.Width(max(m.width-4, 40)).Render(s.String())
}

// renderPercent draws a fixed-width bar followed by the value, colored by
// how close it is to saturation.
func renderPercent(percent float64) string {
	filled := int(percent / 100 * float64(barLength))
	if filled > barLength {
		filled = barLength
	}
	if filled < 0 {
		filled = 0
	}
	text := fmt.Sprintf("|%s%s| %6.2f%%", strings.Repeat("█", filled), strings.Repeat("─", barLength-filled), percent)

	var color string
	switch {
	case percent > 80:
		color = "#F38BA8" // red/pink
	case percent > 50:
		color = "#FAB387" // orange
	default:
		color = "#A6E3A1" // green
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
}

func (m Model) nameWidth() int {
	w := len("CONTAINER")
	for _, c := range m.containers {
		n := len(c.name)
		if n == 0 {
			n = len(c.id)
		}
		if n > w {
			w = n
		}
	}
	if w > 30 {
		w = 30
	}
	return w
}
