package depsentry

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/internal/cache"
	"github.com/depsentry/depsentry/internal/report"
	"github.com/depsentry/depsentry/internal/tui"
)

var (
	reportFormat   string
	reportTUI      bool
	reportBaseline string
	reportAll      bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the results of the last scan without scanning again",
		RunE:  runReport,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVarP(&reportFormat, "format", "f", "table", "output format: table|text|json|sarif")
	cmd.Flags().BoolVar(&reportTUI, "tui", false, "browse the results interactively")
	cmd.Flags().StringVar(&reportBaseline, "baseline", defaultBaseline, "baseline file of accepted vulnerabilities")
	cmd.Flags().BoolVar(&reportAll, "all", false, "include baselined vulnerabilities")
}

func runReport(_ *cobra.Command, _ []string) error {
	if err := checkFormat(reportFormat); err != nil {
		return err
	}
	fc := loadConfig(".")
	results, err := cache.LoadResults(cacheDir(fc))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no saved results; run 'depsentry scan' first")
	}
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}

	deps := results.Dependencies
	if !reportAll {
		base, _ := report.LoadBaseline(reportBaseline)
		deps = report.FilterNew(deps, base)
	}
	if reportTUI {
		return tui.Run(deps, tui.Options{
			Prefs:        tuiPrefs(fc),
			BaselinePath: reportBaseline,
			ScannedAt:    results.Timestamp,
		})
	}
	return render(os.Stdout, reportFormat, deps, report.PrintOptions{NoColor: noColor(fc), Scanned: results.Count})
}
