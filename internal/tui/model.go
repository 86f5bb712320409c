package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/depsentry/depsentry/internal/report"
	"github.com/depsentry/depsentry/internal/types"
)

var (
	paneBorderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("7"))

	statsStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("237"))

	emptyTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Align(lipgloss.Center)

	popupStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(1, 4)

	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// severityText returns plain text for severity (ANSI codes break table truncation).
func severityText(s types.Severity) string {
	switch s {
	case types.SevCritical:
		return "CRIT"
	case types.SevHigh:
		return "HIGH"
	case types.SevMed:
		return "MED"
	case types.SevLow:
		return "LOW"
	case "":
		return "-"
	default:
		return strings.ToUpper(string(s))
	}
}

// severityCycle is the order the severity filter steps through.
var severityCycle = []types.Severity{"", types.SevCritical, types.SevHigh, types.SevMed, types.SevLow}

// item is one table row: a vulnerability of a dependency, or a dependency
// without vulnerabilities when vuln is -1.
type item struct {
	dep  int
	vuln int
}

// Model is the state of the results browser.
type Model struct {
	table      table.Model
	viewport   viewport.Model
	spinner    spinner.Model
	search     textinput.Model
	deps       []report.Dependency
	items      []item // rows currently displayed
	prefs      Prefs
	baseline   string // baseline file updated by "b"; "" disables it
	rescanFunc func() ([]report.Dependency, error)

	ready         bool
	quitting      bool
	scanning      bool
	searchMode    bool
	showHelp      bool
	searchQuery   string
	sevFilter     types.Severity
	width, height int
	scannedAt     time.Time

	statusMessage string
	statusTimeout *time.Time
}

const defaultStatus = "q: quit | ?: help | /: search | s: severity | c: copy id | y: copy path | b: baseline | r: rescan"

// NewModel initializes the browser over deps.
func NewModel(deps []report.Dependency, opts Options) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Sev", Width: 6},
			{Title: "CVSS", Width: 5},
			{Title: "ID", Width: 18},
			{Title: "Dependency", Width: 40},
			{Title: "Identifier", Width: 35},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("15")).
		Bold(true).
		Padding(0, 1)
	s.Selected = lipgloss.NewStyle().
		Foreground(lipgloss.Color("232")).
		Background(lipgloss.Color("208")).
		Bold(true)
	s.Cell = lipgloss.NewStyle().Padding(0, 1)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	ti := textinput.New()
	ti.Placeholder = "Search id, path or identifier..."
	ti.CharLimit = 100
	ti.Width = 50
	ti.Prompt = "/ "

	scannedAt := opts.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now()
	}
	m := Model{
		table:         t,
		viewport:      viewport.New(80, 10),
		spinner:       sp,
		search:        ti,
		deps:          deps,
		prefs:         opts.Prefs,
		baseline:      opts.BaselinePath,
		rescanFunc:    opts.Rescan,
		scannedAt:     scannedAt,
		statusMessage: defaultStatus,
	}
	m.rebuild()
	return m
}

// rebuild recomputes the displayed rows from filters and preferences.
func (m *Model) rebuild() {
	q := strings.ToLower(strings.TrimSpace(m.searchQuery))
	var items []item
	for di, d := range m.deps {
		if len(d.Vulnerabilities) == 0 {
			if m.prefs.ShowClean && m.sevFilter == "" && matches(q, d.FilePath, primaryIdentifier(d)) {
				items = append(items, item{dep: di, vuln: -1})
			}
			continue
		}
		for vi, v := range d.Vulnerabilities {
			if m.sevFilter != "" && v.Severity != m.sevFilter {
				continue
			}
			if !matches(q, v.ID, d.FilePath, primaryIdentifier(d)) {
				continue
			}
			items = append(items, item{dep: di, vuln: vi})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return m.cvss(items[i]) > m.cvss(items[j])
	})
	m.items = items

	rows := make([]table.Row, len(items))
	for i, it := range items {
		d := m.deps[it.dep]
		if it.vuln < 0 {
			rows[i] = table.Row{severityText(""), "", "", d.FilePath, primaryIdentifier(d)}
			continue
		}
		v := d.Vulnerabilities[it.vuln]
		rows[i] = table.Row{severityText(v.Severity), fmt.Sprintf("%.1f", v.CVSS), v.ID, d.FilePath, primaryIdentifier(d)}
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
	m.updateViewportContent()
}

func (m *Model) cvss(it item) float64 {
	if it.vuln < 0 {
		return -1
	}
	return m.deps[it.dep].Vulnerabilities[it.vuln].CVSS
}

func matches(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func primaryIdentifier(d report.Dependency) string {
	for _, id := range d.Identifiers {
		if id.Type == "cpe" {
			return id.Value
		}
	}
	if len(d.Identifiers) > 0 {
		return d.Identifiers[0].Value
	}
	return ""
}

// selected returns the dependency and vulnerability under the cursor.
func (m Model) selected() (*report.Dependency, *types.Vulnerability) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.items) {
		return nil, nil
	}
	it := m.items[c]
	d := &m.deps[it.dep]
	if it.vuln < 0 {
		return d, nil
	}
	return d, &d.Vulnerabilities[it.vuln]
}

func (m *Model) updateViewportContent() {
	d, _ := m.selected()
	if d == nil {
		m.viewport.SetContent("")
		return
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		m.viewport.SetContent(report.Describe(*d))
		return
	}
	content := string(b)
	if !m.prefs.NoColor {
		content = highlight(content, "json")
	}
	m.viewport.SetContent(content)
	m.viewport.GotoTop()
}

func highlight(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

type depsMsg []report.Dependency

type statusMsg string

func (m *Model) rescan() tea.Cmd {
	fn := m.rescanFunc
	return func() tea.Msg {
		if fn == nil {
			return statusMsg("Rescan not available")
		}
		deps, err := fn()
		if err != nil {
			return statusMsg(fmt.Sprintf("Scan error: %v", err))
		}
		return depsMsg(deps)
	}
}

func (m *Model) setStatus(s string) {
	timeout := time.Now().Add(3 * time.Second)
	m.statusTimeout = &timeout
	m.statusMessage = s
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if m.searchMode {
			switch msg.String() {
			case "enter":
				m.searchMode = false
				m.search.Blur()
				return m, nil
			case "esc":
				m.searchMode = false
				m.search.Blur()
				m.search.SetValue("")
				m.searchQuery = ""
				m.rebuild()
				return m, nil
			default:
				m.search, cmd = m.search.Update(msg)
				m.searchQuery = m.search.Value()
				m.rebuild()
				return m, cmd
			}
		}
		if m.scanning {
			if msg.String() == "ctrl+c" {
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "?":
			m.showHelp = true
			return m, nil
		case "/":
			m.searchMode = true
			return m, m.search.Focus()
		case "esc":
			m.searchQuery = ""
			m.search.SetValue("")
			m.sevFilter = ""
			m.rebuild()
			return m, nil
		case "s":
			m.sevFilter = nextSeverity(m.sevFilter)
			m.rebuild()
			if m.sevFilter == "" {
				m.setStatus("Severity filter cleared")
			} else {
				m.setStatus("Showing " + string(m.sevFilter) + " only")
			}
			return m, nil
		case "a":
			m.prefs.ShowClean = !m.prefs.ShowClean
			m.rebuild()
			return m, savePrefs(m.prefs)
		case "c":
			return m, m.copyIDToClipboard()
		case "y":
			return m, m.copyPathToClipboard()
		case "b":
			return m, m.addToBaseline()
		case "e":
			return m, m.exportJSON()
		case "r":
			m.scanning = true
			return m, tea.Batch(m.spinner.Tick, m.rescan())
		case "pgdown", "pgup", "ctrl+d", "ctrl+u":
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		before := m.table.Cursor()
		m.table, cmd = m.table.Update(msg)
		if m.table.Cursor() != before {
			m.updateViewportContent()
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		pathWidth := max((m.width-6-5-18-10)/2, 25)
		cols := m.table.Columns()
		cols[3].Width = pathWidth
		cols[4].Width = max(m.width-6-5-18-pathWidth-12, 20)
		m.table.SetColumns(cols)

		available := m.height - 2
		tableHeight := available * 45 / 100
		m.table.SetWidth(m.width)
		m.table.SetHeight(max(tableHeight, 3))
		m.viewport.Width = m.width - paneBorderStyle.GetHorizontalFrameSize()
		m.viewport.Height = max(available-tableHeight-2*paneBorderStyle.GetVerticalFrameSize(), 3)
		m.updateViewportContent()
		return m, nil

	case depsMsg:
		m.scanning = false
		m.deps = []report.Dependency(msg)
		m.scannedAt = time.Now()
		m.rebuild()
		m.setStatus(fmt.Sprintf("Rescan complete: %d vulnerabilities", report.Count(m.deps).Total()))
		return m, nil

	case statusMsg:
		m.scanning = false
		m.setStatus(string(msg))
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		if m.statusTimeout != nil && time.Now().After(*m.statusTimeout) {
			m.statusTimeout = nil
			m.statusMessage = defaultStatus
		}
		return m, cmd
	}
	return m, nil
}

func nextSeverity(cur types.Severity) types.Severity {
	for i, s := range severityCycle {
		if s == cur {
			return severityCycle[(i+1)%len(severityCycle)]
		}
	}
	return ""
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}
	if m.scanning {
		box := popupStyle.Width(55).Align(lipgloss.Center).
			Render(fmt.Sprintf("%s  Rescanning...\n\nPlease wait", m.spinner.View()))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popupStyle.Render(helpText))
	}

	c := report.Count(m.deps)
	var stats string
	if c.Total() == 0 {
		stats = okStyle.Render("[OK] No known vulnerabilities")
	} else {
		stats = fmt.Sprintf("Total: %-4d |  %s %-3d |  %s %-3d |  %s %-3d |  %s %-3d",
			c.Total(),
			report.SeverityText(types.SevCritical, m.prefs.NoColor)+":", c.Critical,
			report.SeverityText(types.SevHigh, m.prefs.NoColor)+":", c.High,
			report.SeverityText(types.SevMed, m.prefs.NoColor)+":", c.Medium,
			report.SeverityText(types.SevLow, m.prefs.NoColor)+":", c.Low,
		)
		if m.searchQuery != "" || m.sevFilter != "" {
			stats += fmt.Sprintf("  [showing %d]", len(m.items))
		}
	}
	header := statsStyle.Width(m.width).Render(stats + "  " + formatAge(time.Since(m.scannedAt)))

	var detail string
	if len(m.items) == 0 {
		msg := "No vulnerabilities to review.\n\nPress 'a' to list clean dependencies"
		if m.searchQuery != "" || m.sevFilter != "" {
			msg = "Nothing matches the filter.\n\nPress 'Esc' to clear it"
		}
		detail = lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center, emptyTextStyle.Render(msg))
	} else {
		detail = m.viewport.View()
	}

	status := m.statusMessage
	if m.searchMode {
		status = m.search.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		paneBorderStyle.Width(m.width-paneBorderStyle.GetHorizontalFrameSize()).Render(m.table.View()),
		paneBorderStyle.Width(m.width-paneBorderStyle.GetHorizontalFrameSize()).Render(detail),
		statusStyle.Width(m.width).Render(status),
	)
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "scanned just now"
	case d < time.Hour:
		return fmt.Sprintf("scanned %dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("scanned %dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("scanned %dd ago", int(d.Hours()/24))
	}
}

const helpText = `Navigation
  j/k, up/down   move
  pgup/pgdown    scroll details

Filter
  /              search
  s              cycle severity filter
  a              toggle clean dependencies
  esc            clear filters

Actions
  c              copy vulnerability id
  y              copy dependency path
  b              add to baseline
  e              export view as JSON
  r              rescan
  q              quit`
