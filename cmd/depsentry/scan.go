package depsentry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/internal/artifacts"
	"github.com/depsentry/depsentry/internal/audit"
	"github.com/depsentry/depsentry/internal/cache"
	"github.com/depsentry/depsentry/internal/config"
	"github.com/depsentry/depsentry/internal/engine"
	"github.com/depsentry/depsentry/internal/report"
	"github.com/depsentry/depsentry/internal/tui"
	"github.com/depsentry/depsentry/internal/update"
)

var (
	flagImages          []string
	flagFormat          string
	flagJSON            bool
	flagSARIF           bool
	flagFailOnCVSS      float64
	flagBaseline        string
	flagInclude         string
	flagExclude         string
	flagEnable          string
	flagDisable         string
	flagDefaultExcludes bool
	flagNoUpdate        bool
	flagNoUpdateCheck   bool
	flagNoCache         bool
	flagTUI             bool
)

const defaultBaseline = "depsentry.baseline.json"

func init() {
	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan files, directories, globs or images for vulnerable dependencies",
		Long: `Scan collects every file an analyzer supports under the given paths,
analyzes them and reports the known vulnerabilities found.

A path may be a file, a directory, or a directory followed by a glob of the
form dir/*.ext. With no paths the current directory is scanned.`,
		Example: `  depsentry scan
  depsentry scan ./lib/*.jar --format json
  depsentry scan --image alpine:3.19 --fail-on-cvss 7`,
		RunE: runScan,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringSliceVar(&flagImages, "image", nil, "container image reference or docker-save tarball to scan (repeatable)")
	cmd.Flags().StringVarP(&flagFormat, "format", "f", "", "output format: table|text|json|sarif")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "shorthand for --format json")
	cmd.Flags().BoolVar(&flagSARIF, "sarif", false, "shorthand for --format sarif")
	cmd.Flags().Float64Var(&flagFailOnCVSS, "fail-on-cvss", 0, "exit 1 when a vulnerability scores at least this (0-10)")
	cmd.Flags().StringVar(&flagBaseline, "baseline", defaultBaseline, "baseline file of accepted vulnerabilities")
	cmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated globs to include")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated globs to exclude")
	cmd.Flags().StringVar(&flagEnable, "enable", "", "comma-separated analyzers to run (see 'depsentry analyzers')")
	cmd.Flags().StringVar(&flagDisable, "disable", "", "comma-separated analyzers to skip")
	cmd.Flags().BoolVar(&flagDefaultExcludes, "default-excludes", true, "skip VCS, IDE and build output directories")
	cmd.Flags().BoolVar(&flagNoUpdate, "no-update", false, "do not refresh data sources before scanning")
	cmd.Flags().BoolVar(&flagNoUpdateCheck, "no-update-check", false, "disable the new release check")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "do not save results and history for 'depsentry report' and 'depsentry history'")
	cmd.Flags().BoolVar(&flagTUI, "tui", false, "browse the results interactively")
}

// scanJob is one resolved scan invocation; run may be repeated for a
// rescan from the browser.
type scanJob struct {
	paths  []string
	images []string
	fc     config.FileConfig
	cfg    engine.Config
	limits artifacts.Limits
}

type scanResult struct {
	deps     []report.Dependency
	stats    engine.RunStats
	duration time.Duration
}

func runScan(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 && len(flagImages) == 0 {
		paths = []string{"."}
	}
	fc := loadConfig(configRoot(paths))

	format := pickString(flagFormat, fc.Format, strPtr("table"))
	switch {
	case flagSARIF:
		format = "sarif"
	case flagJSON:
		format = "json"
	}
	if err := checkFormat(format); err != nil {
		return err
	}

	opts := scanOptions{
		Include:  flagInclude,
		Exclude:  flagExclude,
		Enable:   flagEnable,
		Disable:  flagDisable,
		NoUpdate: flagNoUpdate,
	}
	if cmd.Flags().Changed("default-excludes") {
		opts.DefaultExcludes = &flagDefaultExcludes
	}
	limits, err := imageLimits(fc)
	if err != nil {
		return err
	}
	job := scanJob{paths: paths, images: flagImages, fc: fc, cfg: engineConfig(fc, opts), limits: limits}

	machine := format == "json" || format == "sarif"
	if !machine && !flagTUI && !flagNoUpdateCheck {
		vc := update.VersionChecker{}
		if latest, newer, _ := vc.Check(cmd.Context(), version, job.cfg.Offline); newer && latest != "" {
			_, _ = fmt.Fprintf(os.Stderr, "(new version available: v%s)  run 'depsentry update --self' to upgrade\n", latest)
		}
	}

	res, err := job.run(cmd.Context())
	if err != nil {
		return err
	}

	if !flagNoCache {
		if err := cache.SaveResults(job.cfg.CacheDir, append(absPaths(paths), flagImages...), res.deps); err != nil {
			logrus.WithError(err).Warn("unable to save scan results")
		}
	}

	base, err := report.LoadBaseline(flagBaseline)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warnf("ignoring unreadable baseline %s", flagBaseline)
	}
	newDeps := report.FilterNew(res.deps, base)

	if !flagNoCache {
		rec := audit.NewScanRecord(append(absPaths(paths), flagImages...), res.deps, newDeps, res.duration, flagBaseline)
		if err := audit.NewLog(job.cfg.CacheDir).LogScan(rec); err != nil {
			logrus.WithError(err).Warn("unable to record scan history")
		}
	}

	if flagTUI {
		return tui.Run(newDeps, tui.Options{
			Prefs:        tuiPrefs(fc),
			BaselinePath: flagBaseline,
			Rescan: func() ([]report.Dependency, error) {
				r, err := job.run(context.Background())
				if err != nil {
					return nil, err
				}
				b, _ := report.LoadBaseline(flagBaseline)
				return report.FilterNew(r.deps, b), nil
			},
		})
	}

	printOpts := report.PrintOptions{NoColor: noColor(fc), Duration: res.duration, Scanned: res.stats.Dependencies}
	if err := render(os.Stdout, format, newDeps, printOpts); err != nil {
		return err
	}

	threshold := pickFloat(flagFailOnCVSS, fc.FailOnCVSS, floatPtr(report.NeverFail))
	if report.ShouldFail(newDeps, threshold) {
		os.Exit(1)
	}
	return nil
}

// run builds a fresh engine, scans the paths and images and analyzes the
// result.
func (j scanJob) run(ctx context.Context) (scanResult, error) {
	started := time.Now()
	eng := engine.New(ctx, j.cfg)
	defer eng.Cleanup()

	if len(j.paths) > 0 {
		eng.Scan(j.paths...)
	}
	for _, ref := range j.images {
		dir, err := os.MkdirTemp("", "depsentry-image-")
		if err != nil {
			return scanResult{}, err
		}
		defer os.RemoveAll(dir)
		r, err := artifacts.ExtractImage(ctx, ref, dir, eng.SupportsExtension, j.limits)
		if err != nil {
			return scanResult{}, fmt.Errorf("image %s: %w", ref, err)
		}
		log := logrus.WithFields(logrus.Fields{"image": ref, "files": len(r.Files), "skipped": r.Skipped})
		if r.Truncated != "" {
			log.Warnf("image extraction stopped early: %s limit reached", r.Truncated)
		} else {
			log.Info("image extracted")
		}
		eng.Scan(dir)
	}

	if err := eng.AnalyzeDependencies(ctx); err != nil {
		if errors.Is(err, engine.ErrNoData) {
			return scanResult{}, fmt.Errorf("%w; configure a data source and run 'depsentry update'", err)
		}
		return scanResult{}, err
	}
	return scanResult{
		deps:     report.FromDependencies(eng.Dependencies()),
		stats:    eng.Stats(),
		duration: time.Since(started),
	}, nil
}

func tuiPrefs(fc config.FileConfig) tui.Prefs {
	p := tui.LoadPrefs()
	p.NoColor = pickBool(flagNoColor, fc.NoColor)
	return p
}

// absPaths records scan roots independent of the working directory.
func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, p)
	}
	return out
}
