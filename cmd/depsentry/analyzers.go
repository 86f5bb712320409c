package depsentry

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyzers",
		Short: "List the analyzers in execution order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc := loadConfig(".")
			cfg := engineConfig(fc, scanOptions{NoUpdate: true})
			eng := engine.New(cmd.Context(), cfg)
			defer eng.Cleanup()

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("PHASE", "ANALYZER", "SCOPE", "PARALLEL")
			for _, a := range eng.AllAnalyzers() {
				scope := "all"
				if _, ok := a.(analyzer.FileTypeAnalyzer); ok {
					scope = "file type"
				}
				parallel := "no"
				if analyzer.IsParallel(a) {
					parallel = "yes"
				}
				if err := table.Append([]string{a.Phase().String(), a.Name(), scope, parallel}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
	rootCmd.AddCommand(cmd)
}
