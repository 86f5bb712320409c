package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/depsentry/depsentry/internal/types"
)

type PrintOptions struct {
	NoColor  bool
	Duration time.Duration
	// Scanned is the number of dependencies analyzed.
	Scanned int
}

var (
	sevCriticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	sevHighStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sevMedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	sevLowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// SeverityText renders s, colored unless noColor is set.
func SeverityText(s types.Severity, noColor bool) string {
	text := string(s)
	if noColor {
		return text
	}
	switch s {
	case types.SevCritical:
		return sevCriticalStyle.Render(text)
	case types.SevHigh:
		return sevHighStyle.Render(text)
	case types.SevMed:
		return sevMedStyle.Render(text)
	default:
		return sevLowStyle.Render(text)
	}
}

func primaryIdentifier(d Dependency) string {
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

// PrintTable renders one row per vulnerability.
func PrintTable(w io.Writer, deps []Dependency, opts PrintOptions) error {
	c := Count(deps)
	if c.Total() == 0 {
		fmt.Fprintln(w, "No known vulnerabilities found ✅")
	} else {
		table := tablewriter.NewWriter(w)
		table.Header("SEVERITY", "CVSS", "ID", "DEPENDENCY", "IDENTIFIER")
		for _, d := range deps {
			for _, v := range d.Vulnerabilities {
				row := []string{
					SeverityText(v.Severity, opts.NoColor),
					fmt.Sprintf("%.1f", v.CVSS),
					v.ID,
					d.FilePath,
					primaryIdentifier(d),
				}
				if err := table.Append(row); err != nil {
					return err
				}
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	printFooter(w, c, opts)
	return nil
}

// PrintText renders a compact, greppable listing.
func PrintText(w io.Writer, deps []Dependency, opts PrintOptions) {
	c := Count(deps)
	if c.Total() == 0 {
		fmt.Fprintln(w, "No known vulnerabilities found ✅")
	} else {
		fmt.Fprintf(w, "Vulnerabilities: %d\n", c.Total())
		for _, d := range deps {
			for _, v := range d.Vulnerabilities {
				fmt.Fprintf(w, "%-8s %4.1f  %-16s %s\n", SeverityText(v.Severity, opts.NoColor), v.CVSS, v.ID, d.FilePath)
			}
		}
	}
	printFooter(w, c, opts)
}

func printFooter(w io.Writer, c Counts, opts PrintOptions) {
	if opts.Duration <= 0 && opts.Scanned <= 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Vulnerabilities: %d (critical: %d, high: %d, medium: %d, low: %d)\n", c.Total(), c.Critical, c.High, c.Medium, c.Low)
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Scan duration: %.2fs\n", opts.Duration.Seconds())
	}
	if opts.Scanned > 0 {
		fmt.Fprintf(w, "Dependencies scanned: %d\n", opts.Scanned)
	}
}

// Describe renders everything known about d, for detail views.
func Describe(d Dependency) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", d.FileName, d.FilePath)
	if d.SHA1 != "" {
		fmt.Fprintf(&b, "sha1: %s\n", d.SHA1)
	}
	if len(d.Identifiers) > 0 {
		b.WriteString("\nIdentifiers:\n")
		for _, id := range d.Identifiers {
			fmt.Fprintf(&b, "  %s  %s\n", id.Type, id.Value)
		}
	}
	if len(d.Vulnerabilities) > 0 {
		b.WriteString("\nVulnerabilities:\n")
		for _, v := range d.Vulnerabilities {
			fmt.Fprintf(&b, "  %s (%s, %.1f)\n", v.ID, v.Severity, v.CVSS)
			if v.Description != "" {
				fmt.Fprintf(&b, "    %s\n", v.Description)
			}
		}
	}
	if len(d.Related) > 0 {
		b.WriteString("\nRelated:\n")
		for _, r := range d.Related {
			fmt.Fprintf(&b, "  %s\n", r)
		}
	}
	return b.String()
}
