package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rusenback/perfverse/internal/model"
)

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case rowMsg:
		row := model.Row(msg)
		c := m.lookup(row)
		c.name = row.ContainerName
		c.last = row
		c.rows++
		c.lastSeen = time.Now()
		if c.lastSeen.After(m.now) {
			m.now = c.lastSeen
		}
	}

	return m, nil
}
