package depsentry

import (
	"fmt"
	"io"
	"strings"

	"github.com/depsentry/depsentry/internal/report"
)

// formats accepted by --format.
var formats = []string{"table", "text", "json", "sarif"}

func checkFormat(f string) error {
	for _, known := range formats {
		if f == known {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want one of %s)", f, strings.Join(formats, ", "))
}

// render writes deps to w in format.
func render(w io.Writer, format string, deps []report.Dependency, opts report.PrintOptions) error {
	switch format {
	case "sarif":
		if err := report.WriteSARIF(w, deps, version); err != nil {
			return fmt.Errorf("sarif error: %w", err)
		}
	case "json":
		return report.WriteJSON(w, deps, version)
	case "text":
		report.PrintText(w, deps, opts)
	default:
		return report.PrintTable(w, deps, opts)
	}
	return nil
}
