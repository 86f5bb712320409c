// Package tui is an interactive browser for scan results.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/depsentry/depsentry/internal/report"
)

// Options configure the browser.
type Options struct {
	Prefs Prefs
	// BaselinePath enables the "b" action.
	BaselinePath string
	// Rescan enables the "r" action.
	Rescan func() ([]report.Dependency, error)
	// ScannedAt is shown as the age of the results; zero means now.
	ScannedAt time.Time
}

// Run starts the browser and blocks until the user quits.
func Run(deps []report.Dependency, opts Options) error {
	m := NewModel(deps, opts)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
