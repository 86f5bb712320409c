package depsentry

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/internal/config"
	"github.com/depsentry/depsentry/internal/logging"
)

var (
	flagThreads   int
	flagNoColor   bool
	flagDataDir   string
	flagOffline   bool
	flagConfig    string
	flagEnvFile   string
	flagLogLevel  string
	flagLogFormat string
	flagLogOutput string

	version = "0.1.0"

	logCloser io.Closer
)

// rootCmd is the base Cobra command for the depsentry CLI.
var rootCmd = &cobra.Command{
	Use:               "depsentry",
	Short:             "Find dependencies with known vulnerabilities",
	Long:              "depsentry collects evidence about the libraries in your project or container image, identifies them and reports known vulnerabilities.",
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// Execute runs the depsentry CLI. It should be called by the main package.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagThreads, "threads", 0, "worker count (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding vulnerability data")
	rootCmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "never contact the network")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file used instead of the global one")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "dotenv file to load (default ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "trace|debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "text|json")
	rootCmd.PersistentFlags().StringVar(&flagLogOutput, "log-output", "", "stderr, stdout or a file path")
}

// setup loads the environment and configures logging before any command
// runs. Log settings from the config files apply unless given as flags.
func setup(_ *cobra.Command, _ []string) error {
	var files []string
	if flagEnvFile != "" {
		files = append(files, flagEnvFile)
	}
	if err := config.LoadDotEnv(files...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	fc := loadConfig(".")
	var lg config.LoggingConfig
	if fc.Logging != nil {
		lg = *fc.Logging
	}
	closer, err := logging.Init(logrus.StandardLogger(), logging.Options{
		Level:  pickString(flagLogLevel, lg.Level),
		Format: pickString(flagLogFormat, lg.Format),
		Output: pickString(flagLogOutput, lg.Output),
	})
	logCloser = closer
	if err != nil {
		logrus.WithError(err).Warn("unable to open log output, logging to stderr")
	}
	return nil
}
