package depsentry

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/internal/audit"
)

var (
	historyLimit int
	historyClear bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous scans",
		RunE:  runHistory,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of scans to show (0 = all)")
	cmd.Flags().BoolVar(&historyClear, "clear", false, "delete the scan history")
}

func runHistory(_ *cobra.Command, _ []string) error {
	log := audit.NewLog(cacheDir(loadConfig(".")))
	if historyClear {
		if err := log.Clear(); err != nil {
			return err
		}
		fmt.Println("Scan history cleared.")
		return nil
	}
	records, err := log.LoadHistory()
	if errors.Is(err, os.ErrNotExist) {
		fmt.Println("No scans recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}
	if historyLimit > 0 && len(records) > historyLimit {
		records = records[:historyLimit]
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("WHEN", "ROOTS", "COMMIT", "DEPS", "VULNERABLE", "CRIT", "HIGH", "NEW", "DURATION")
	for _, r := range records {
		commit := r.Git.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		row := []string{
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			strings.Join(r.Roots, ","),
			commit,
			fmt.Sprint(r.Dependencies),
			fmt.Sprint(r.Vulnerable),
			fmt.Sprint(r.Vulnerabilities.Critical),
			fmt.Sprint(r.Vulnerabilities.High),
			fmt.Sprint(r.NewVulnerabilities),
			r.Duration,
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
