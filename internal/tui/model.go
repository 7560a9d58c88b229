package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rusenback/perfverse/internal/model"
)

// containerState is what the dashboard remembers about one container.
type containerState struct {
	id       string
	name     string
	last     model.Row
	rows     uint64
	lastSeen time.Time
}

// Model represents the dashboard state
type Model struct {
	containers []*containerState
	outputFile string
	started    time.Time
	now        time.Time
	width      int
	height     int
}

// Message types for Bubbletea update loop
type tickMsg time.Time

type rowMsg model.Row

// NewModel creates a dashboard for the given container IDs. Rows for
// containers that were not listed are added as they arrive.
func NewModel(ids []string, outputFile string) Model {
	now := time.Now()
	m := Model{
		outputFile: outputFile,
		started:    now,
		now:        now,
		width:      100,
	}
	for _, id := range ids {
		m.containers = append(m.containers, &containerState{id: id})
	}
	return m
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd refreshes the "last seen" ages once a second
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// lookup finds the state a row belongs to. Workers are started with
// container names or IDs; a name only matches the row's name, an ID matches
// when it is a prefix of at least shortIDLen hex digits.
func (m *Model) lookup(row model.Row) *containerState {
	for _, c := range m.containers {
		if c.id != "" && c.id == row.ContainerName {
			return c
		}
	}
	for _, c := range m.containers {
		if c.id == row.ContainerID || (isShortID(c.id) && strings.HasPrefix(row.ContainerID, c.id)) {
			return c
		}
	}
	c := &containerState{id: row.ContainerID}
	m.containers = append(m.containers, c)
	return c
}

// shortIDLen is the length of the IDs printed by docker ps.
const shortIDLen = 12

func isShortID(id string) bool {
	if len(id) < shortIDLen {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
