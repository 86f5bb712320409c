package depsentry

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/depsentry/depsentry/internal/analyzers"
	"github.com/depsentry/depsentry/internal/artifacts"
	"github.com/depsentry/depsentry/internal/config"
	"github.com/depsentry/depsentry/internal/engine"
	"github.com/depsentry/depsentry/internal/update"
	"github.com/depsentry/depsentry/internal/vulndb"
)

// loadConfig merges, lowest first: the global file (or --config), the
// project file found in root, and the environment. Flags are applied on
// top by the callers.
func loadConfig(root string) config.FileConfig {
	var global config.FileConfig
	if flagConfig != "" {
		fc, err := config.LoadFile(flagConfig)
		if err != nil {
			logrus.WithError(err).Warnf("unable to read config %s", flagConfig)
		}
		global = fc
	} else {
		global, _ = config.LoadGlobal()
	}
	local, _ := config.LoadLocal(root)
	return config.Merge(config.Merge(global, local), config.FromEnv())
}

// configRoot is the directory searched for a project config: the first
// scan path, or its parent when it names a file or glob.
func configRoot(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	p := paths[0]
	if strings.ContainsAny(p, "*?[") {
		return filepath.Dir(p)
	}
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return filepath.Dir(p)
	}
	return p
}

func dataDir(fc config.FileConfig) string {
	return pickString(flagDataDir, fc.DataDir, strPtr(config.DefaultDataDir()))
}

func cacheDir(fc config.FileConfig) string {
	return pickString("", fc.CacheDir, strPtr(config.DefaultCacheDir()))
}

// sourceFactories builds the configured reference data sources.
func sourceFactories(fc config.FileConfig) []update.Factory {
	var out []update.Factory
	var src config.SourcesConfig
	if fc.Sources != nil {
		src = *fc.Sources
	}
	for _, f := range src.Feeds {
		out = append(out, update.Feed(f))
	}
	for _, g := range src.Git {
		out = append(out, update.Git(g))
	}
	var s3 update.S3Config
	if src.S3 != nil {
		s3 = *src.S3
	}
	if s3 = config.S3Credentials(s3); s3.Enabled() {
		out = append(out, update.S3(s3))
	}
	return out
}

func databaseConfig(fc config.FileConfig, dir string) vulndb.Config {
	cfg := vulndb.Config{DataDir: dir}
	if fc.Database != nil {
		cfg.Driver = pickString("", fc.Database.Driver)
		cfg.DSN = pickString("", fc.Database.DSN)
	}
	return cfg
}

// analyzerFilter returns nil when neither list is set. An enable list
// wins over a disable list.
func analyzerFilter(enable, disable string) func(string) bool {
	on := splitList(enable)
	off := splitList(disable)
	if len(on) == 0 && len(off) == 0 {
		return nil
	}
	return func(name string) bool {
		if len(on) > 0 {
			return on[name]
		}
		return !off[name]
	}
}

func splitList(s string) map[string]bool {
	out := map[string]bool{}
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out[v] = true
		}
	}
	return out
}

// scanOptions are the flags of a scan that override the config files.
type scanOptions struct {
	Include         string
	Exclude         string
	Enable          string
	Disable         string
	DefaultExcludes *bool
	NoUpdate        bool
}

// engineConfig resolves the engine configuration from fc and the flags.
func engineConfig(fc config.FileConfig, opts scanOptions) engine.Config {
	dir := dataDir(fc)
	cfg := engine.DefaultConfig(dir)
	cfg.Analyzers = analyzers.Defaults()
	cfg.Sources = sourceFactories(fc)
	cfg.CacheDir = cacheDir(fc)
	cfg.Database = databaseConfig(fc, dir)
	if fc.Index != nil {
		cfg.IndexCacheSize = pickInt(0, fc.Index.CacheSize)
	}
	cfg.Offline = pickBool(flagOffline, fc.Offline)
	cfg.AutoUpdate = !opts.NoUpdate && !cfg.Offline && pickBool(false, fc.AutoUpdate, boolPtr(true))
	cfg.Enabled = analyzerFilter(pickString(opts.Enable, fc.Enable), pickString(opts.Disable, fc.Disable))
	cfg.Threads = pickInt(flagThreads, fc.Threads, intPtr(runtime.GOMAXPROCS(0)))
	cfg.IncludeGlobs = pickString(opts.Include, fc.Include)
	cfg.ExcludeGlobs = pickString(opts.Exclude, fc.Exclude)
	cfg.DefaultExcludes = pickBool(false, opts.DefaultExcludes, fc.DefaultExcludes, boolPtr(true))
	cfg.Logger = logrus.StandardLogger()
	return cfg
}

// imageLimits applies the image section of fc to the default limits.
func imageLimits(fc config.FileConfig) (artifacts.Limits, error) {
	limits := artifacts.DefaultLimits
	if fc.Image == nil {
		return limits, nil
	}
	limits.MaxBytes = pickInt64(0, fc.Image.MaxBytes, &limits.MaxBytes)
	limits.MaxEntries = pickInt(0, fc.Image.MaxEntries, &limits.MaxEntries)
	if tb := pickString("", fc.Image.TimeBudget); tb != "" {
		d, err := time.ParseDuration(tb)
		if err != nil {
			return limits, fmt.Errorf("invalid image.time_budget %q: %w", tb, err)
		}
		limits.TimeBudget = d
	}
	return limits, nil
}

// noColor reports whether output should be plain: by flag, by config, or
// because stdout is not a terminal.
func noColor(fc config.FileConfig) bool {
	if pickBool(flagNoColor, fc.NoColor) {
		return true
	}
	return !term.IsTerminal(int(os.Stdout.Fd()))
}
