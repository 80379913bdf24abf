package ui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

// Run drives the full-screen installer until the operator quits. cancel stops
// the engine; it is called on quit and on the first ctrl+c.
func Run(ctx context.Context, events <-chan domain.Event, actions chan<- domain.Action, meta Meta, cancel func()) error {
	m := NewModel(ctx, events, actions, meta, cancel)

	// Seed a size in case WindowSizeMsg never arrives (some PTYs and wrappers).
	if w, h, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 && h > 0 {
		m.width, m.height = w, h
	} else {
		m.width, m.height = 80, 24
	}
	m.reflow()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// IsTerminal reports whether stdout can host the full-screen UI.
func IsTerminal() bool {
	return term.IsTerminal(os.Stdout.Fd()) && term.IsTerminal(os.Stdin.Fd())
}
