package tui

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/depsentry/depsentry/internal/report"
)

// clipboardWrite is swapped in tests.
var clipboardWrite = clipboard.WriteAll

func (m Model) copyIDToClipboard() tea.Cmd {
	_, v := m.selected()
	if v == nil {
		return func() tea.Msg { return statusMsg("No vulnerability selected") }
	}
	id := v.ID
	return func() tea.Msg {
		if err := clipboardWrite(id); err != nil {
			return statusMsg(fmt.Sprintf("Clipboard error: %v", err))
		}
		return statusMsg("Copied: " + id)
	}
}

func (m Model) copyPathToClipboard() tea.Cmd {
	d, _ := m.selected()
	if d == nil {
		return func() tea.Msg { return statusMsg("No dependency selected") }
	}
	path := d.FilePath
	return func() tea.Msg {
		if err := clipboardWrite(path); err != nil {
			return statusMsg(fmt.Sprintf("Clipboard error: %v", err))
		}
		return statusMsg("Copied: " + path)
	}
}

// addToBaseline accepts the selected vulnerability in the baseline file.
func (m Model) addToBaseline() tea.Cmd {
	if m.baseline == "" {
		return func() tea.Msg { return statusMsg("No baseline file configured") }
	}
	d, v := m.selected()
	if v == nil {
		return func() tea.Msg { return statusMsg("No vulnerability selected") }
	}
	path, dep, id := m.baseline, *d, v.ID
	return func() tea.Msg {
		b, err := report.LoadBaseline(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return statusMsg(fmt.Sprintf("Baseline error: %v", err))
		}
		b.Add(dep, id)
		if err := report.WriteBaseline(path, b); err != nil {
			return statusMsg(fmt.Sprintf("Baseline error: %v", err))
		}
		return statusMsg(fmt.Sprintf("Baselined %s for %s", id, dep.FileName))
	}
}

// exportJSON writes the rows currently shown to depsentry-export.json.
func (m Model) exportJSON() tea.Cmd {
	deps := m.visibleDependencies()
	if len(deps) == 0 {
		return func() tea.Msg { return statusMsg("Nothing to export") }
	}
	return func() tea.Msg {
		const name = "depsentry-export.json"
		var b strings.Builder
		if err := report.WriteJSON(&b, deps, ""); err != nil {
			return statusMsg(fmt.Sprintf("Export error: %v", err))
		}
		if err := os.WriteFile(name, []byte(b.String()), 0o644); err != nil {
			return statusMsg(fmt.Sprintf("Export error: %v", err))
		}
		return statusMsg(fmt.Sprintf("Exported %d dependencies to %s", len(deps), name))
	}
}

// visibleDependencies returns the dependencies behind the displayed rows,
// keeping only the vulnerabilities that are shown.
func (m Model) visibleDependencies() []report.Dependency {
	var out []report.Dependency
	pos := map[int]int{}
	for _, it := range m.items {
		i, ok := pos[it.dep]
		if !ok {
			d := m.deps[it.dep]
			d.Vulnerabilities = nil
			out = append(out, d)
			i = len(out) - 1
			pos[it.dep] = i
		}
		if it.vuln >= 0 {
			out[i].Vulnerabilities = append(out[i].Vulnerabilities, m.deps[it.dep].Vulnerabilities[it.vuln])
		}
	}
	return out
}
