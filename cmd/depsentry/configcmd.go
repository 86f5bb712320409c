package depsentry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/depsentry/depsentry/internal/config"
)

var (
	cfgOutput string
	cfgGlobal bool
	cfgForce  bool
)

const redacted = "<redacted>"

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented .depsentry.yml",
		RunE:  runConfigInit,
	}
	cfgCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&cfgOutput, "output", config.LocalNames[0], "output file path")
	initCmd.Flags().BoolVar(&cfgGlobal, "global", false, "write the global config instead")
	initCmd.Flags().BoolVar(&cfgForce, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show [dir]",
		Short: "Print the effective configuration for a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigShow,
	}
	cfgCmd.AddCommand(showCmd)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	out := cfgOutput
	if cfgGlobal {
		p, err := config.GlobalPath()
		if err != nil {
			return err
		}
		out = p
	}
	if _, err := os.Stat(out); err == nil && !cfgForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", out)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte(config.Template), 0o644); err != nil {
		return err
	}
	fmt.Println("Wrote", out)
	return nil
}

func runConfigShow(_ *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	fc := redactSecrets(loadConfig(dir))
	b, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}

// redactSecrets hides credentials before fc is printed.
func redactSecrets(fc config.FileConfig) config.FileConfig {
	if fc.Database != nil && fc.Database.DSN != nil {
		db := *fc.Database
		db.DSN = strPtr(redacted)
		fc.Database = &db
	}
	if fc.Sources != nil && fc.Sources.S3 != nil {
		src := *fc.Sources
		s3 := *src.S3
		if s3.AccessKey != "" {
			s3.AccessKey = redacted
		}
		if s3.SecretKey != "" {
			s3.SecretKey = redacted
		}
		src.S3 = &s3
		fc.Sources = &src
	}
	return fc
}
