package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rusenback/perfverse/internal/model"
)

// Sink forwards exporter rows to a running dashboard program.
type Sink struct {
	p *tea.Program
}

func NewSink(p *tea.Program) *Sink {
	return &Sink{p: p}
}

// WriteRow implements monitor.Sink. Send returns immediately once the
// program has exited.
func (s *Sink) WriteRow(row model.Row) error {
	s.p.Send(rowMsg(row))
	return nil
}
