package depsentry

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/internal/engine"
	"github.com/depsentry/depsentry/internal/update"
)

var (
	flagSelf  bool
	flagCheck bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh vulnerability data, or depsentry itself with --self",
		RunE:  runUpdate,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().BoolVar(&flagSelf, "self", false, "update depsentry to the latest release")
	cmd.Flags().BoolVar(&flagCheck, "check", false, "only report whether a newer release exists")
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	switch {
	case flagCheck:
		latest, newer, err := update.VersionChecker{}.Check(cmd.Context(), version, flagOffline)
		if err != nil {
			return err
		}
		if newer {
			fmt.Printf("v%s is available (running v%s)\n", latest, version)
		} else {
			fmt.Printf("v%s is the latest release\n", version)
		}
		return nil
	case flagSelf:
		v, err := selfUpdate()
		if err != nil {
			return fmt.Errorf("self update: %w", err)
		}
		fmt.Println("updated to", v)
		return nil
	}

	fc := loadConfig(".")
	cfg := engineConfig(fc, scanOptions{NoUpdate: true})
	if cfg.Offline {
		return fmt.Errorf("cannot update data sources while offline")
	}
	eng := engine.New(cmd.Context(), cfg)
	defer eng.Cleanup()

	sources := eng.Sources()
	if len(sources) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "no data sources configured; add feeds, git or s3 under 'sources' (see 'depsentry config init')")
		return nil
	}
	err := eng.Refresh(cmd.Context())
	for _, src := range sources {
		fmt.Println("updated", src.Name())
	}
	if err != nil {
		return fmt.Errorf("some data sources failed: %w", err)
	}
	return nil
}
