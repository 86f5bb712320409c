package tui

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/depsentry/depsentry/internal/report"
	"github.com/depsentry/depsentry/internal/types"
)

func sampleDeps() []report.Dependency {
	struts := types.NewDependency(filepath.Join("lib", "struts2-core-2.1.8.jar"))
	struts.SetHashes("m", "abc123", "x")
	struts.AddIdentifier(types.Identifier{Type: "cpe", Value: "cpe:/a:apache:struts:2.1.8"})
	struts.AddVulnerability(types.Vulnerability{ID: "CVE-2017-9805", Severity: types.SevHigh, CVSS: 8.1})
	struts.AddVulnerability(types.Vulnerability{ID: "CVE-2017-5638", Severity: types.SevCritical, CVSS: 10.0})
	lang := types.NewDependency(filepath.Join("lib", "commons-lang-2.6.jar"))
	lang.AddVulnerability(types.Vulnerability{ID: "CVE-2000-0001", Severity: types.SevLow, CVSS: 2.0})
	clean := types.NewDependency(filepath.Join("lib", "clean-1.0.jar"))
	return report.FromDependencies([]*types.Dependency{struts, lang, clean})
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key(k))
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return nm, cmd
}

func TestNewModel_RowsSortedByCVSS(t *testing.T) {
	m := NewModel(sampleDeps(), Options{Prefs: Prefs{NoColor: true}})
	if len(m.items) != 3 {
		t.Fatalf("expected one row per vulnerability, got %d", len(m.items))
	}
	_, v := m.selected()
	if v == nil || v.ID != "CVE-2017-5638" {
		t.Fatalf("expected highest CVSS first, got %+v", v)
	}
	rows := m.table.Rows()
	if rows[0][0] != "CRIT" || rows[2][0] != "LOW" {
		t.Fatalf("unexpected severity column: %v", rows)
	}
}

func TestSeverityFilterCycles(t *testing.T) {
	m := NewModel(sampleDeps(), Options{Prefs: Prefs{NoColor: true}})
	m, _ = press(t, m, "s")
	if m.sevFilter != types.SevCritical || len(m.items) != 1 {
		t.Fatalf("expected critical only, got %q with %d rows", m.sevFilter, len(m.items))
	}
	m, _ = press(t, m, "s")
	if m.sevFilter != types.SevHigh || len(m.items) != 1 {
		t.Fatalf("expected high only, got %q with %d rows", m.sevFilter, len(m.items))
	}
	m, _ = press(t, m, "s")
	m, _ = press(t, m, "s")
	if m.sevFilter != types.SevLow {
		t.Fatalf("expected low, got %q", m.sevFilter)
	}
	m, _ = press(t, m, "s")
	if m.sevFilter != "" || len(m.items) != 3 {
		t.Fatalf("expected filter cleared")
	}
}

func TestSearchAndShowClean(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	m := NewModel(sampleDeps(), Options{Prefs: Prefs{NoColor: true}})
	m.searchQuery = "commons"
	m.rebuild()
	if len(m.items) != 1 {
		t.Fatalf("expected search to keep one row, got %d", len(m.items))
	}
	m.searchQuery = ""
	m, _ = press(t, m, "a")
	if !m.prefs.ShowClean || len(m.items) != 4 {
		t.Fatalf("expected clean dependency listed, got %d rows", len(m.items))
	}
	last := m.table.Rows()[3]
	if last[0] != "-" || !strings.HasSuffix(last[3], "clean-1.0.jar") {
		t.Fatalf("unexpected clean row %v", last)
	}
}

func TestCopyID(t *testing.T) {
	orig := clipboardWrite
	defer func() { clipboardWrite = orig }()
	var copied string
	clipboardWrite = func(s string) error { copied = s; return nil }

	m := NewModel(sampleDeps(), Options{})
	_, cmd := press(t, m, "c")
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if copied != "CVE-2017-5638" || string(msg.(statusMsg)) != "Copied: CVE-2017-5638" {
		t.Fatalf("unexpected copy result %q / %v", copied, msg)
	}

	clipboardWrite = func(string) error { return errors.New("no clipboard") }
	_, cmd = press(t, m, "y")
	if !strings.Contains(string(cmd().(statusMsg)), "Clipboard error") {
		t.Fatal("expected clipboard error status")
	}
}

func TestAddToBaseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	deps := sampleDeps()
	m := NewModel(deps, Options{BaselinePath: path})
	_, cmd := press(t, m, "b")
	msg := cmd()
	if !strings.HasPrefix(string(msg.(statusMsg)), "Baselined CVE-2017-5638") {
		t.Fatalf("unexpected status %v", msg)
	}
	b, err := report.LoadBaseline(path)
	if err != nil {
		t.Fatal(err)
	}
	left := report.Count(report.FilterNew(deps, b)).Total()
	if left != 2 {
		t.Fatalf("expected one vulnerability baselined, %d left", left)
	}

	m = NewModel(deps, Options{})
	_, cmd = press(t, m, "b")
	if string(cmd().(statusMsg)) != "No baseline file configured" {
		t.Fatal("expected baseline to be disabled")
	}
}

func TestVisibleDependencies_FollowsFilter(t *testing.T) {
	m := NewModel(sampleDeps(), Options{})
	m.sevFilter = types.SevHigh
	m.rebuild()
	deps := m.visibleDependencies()
	if len(deps) != 1 || len(deps[0].Vulnerabilities) != 1 || deps[0].Vulnerabilities[0].ID != "CVE-2017-9805" {
		t.Fatalf("unexpected export set %+v", deps)
	}
}

func TestView_Rendering(t *testing.T) {
	m := NewModel(sampleDeps(), Options{Prefs: Prefs{NoColor: true}})
	if m.View() != "Initializing..." {
		t.Fatal("expected placeholder before the first resize")
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	out := m.View()
	if !strings.Contains(out, "CVE-2017-5638") {
		t.Fatalf("expected table content in view")
	}
	m, _ = press(t, m, "?")
	if !strings.Contains(m.View(), "cycle severity filter") {
		t.Fatal("expected help overlay")
	}
	m, _ = press(t, m, "x")
	if m.showHelp {
		t.Fatal("any key should close help")
	}

	empty := NewModel(nil, Options{})
	next, _ = empty.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if !strings.Contains(next.(Model).View(), "No known vulnerabilities") {
		t.Fatal("expected empty state")
	}
}

func TestRescan(t *testing.T) {
	m := NewModel(nil, Options{Rescan: func() ([]report.Dependency, error) { return sampleDeps(), nil }})
	m, cmd := press(t, m, "r")
	if !m.scanning || cmd == nil {
		t.Fatal("expected scanning state")
	}
	next, _ := m.Update(depsMsg(sampleDeps()))
	m = next.(Model)
	if m.scanning || len(m.items) != 3 {
		t.Fatalf("expected results after rescan, got %d rows", len(m.items))
	}
}

func TestPrefsRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if LoadPrefs().ShowClean {
		t.Fatal("default should hide clean dependencies")
	}
	if err := SavePrefs(Prefs{ShowClean: true}); err != nil {
		t.Fatal(err)
	}
	if !LoadPrefs().ShowClean {
		t.Fatal("expected saved preference")
	}
}
