package engine

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/index"
	"github.com/depsentry/depsentry/internal/types"
	"github.com/depsentry/depsentry/internal/update"
	"github.com/depsentry/depsentry/internal/vulndb"
)

// ErrNoData is returned by AnalyzeDependencies when no vulnerability data
// is available locally.
var ErrNoData = errors.New("no vulnerability data available")

// Config controls discovery, scanning and analysis.
type Config struct {
	// Analyzers and Sources are built in order when the engine is created.
	Analyzers []analyzer.Factory
	Sources   []update.Factory

	// DataDir is where data sources write and the file database reads.
	DataDir  string
	CacheDir string
	Database vulndb.Config
	// OpenDatabase overrides Database when set.
	OpenDatabase   func() (vulndb.Database, error)
	IndexCacheSize int

	// AutoUpdate refreshes every data source during New.
	AutoUpdate bool
	Offline    bool

	// Enabled filters analyzers by name; nil enables all.
	Enabled func(name string) bool
	Threads int

	IncludeGlobs    string
	ExcludeGlobs    string
	DefaultExcludes bool

	Logger logrus.FieldLogger
}

// DefaultConfig returns a Config with automatic updates on and the file
// database rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:    dataDir,
		Database:   vulndb.Config{Driver: "file", DataDir: dataDir},
		AutoUpdate: true,
		Threads:    runtime.GOMAXPROCS(0),
	}
}

// Engine scans for dependencies and runs the analyzers over them. The
// working set may be read and changed from several goroutines.
type Engine struct {
	cfg       Config
	log       logrus.FieldLogger
	analyzers *analyzer.Registry
	sources   *update.Service

	mu     sync.RWMutex
	deps   []*types.Dependency
	byPath map[string]*types.Dependency

	ixMu sync.RWMutex
	ix   *index.Index

	statsMu sync.Mutex
	stats   RunStats
}

// New discovers the data sources, refreshes them when cfg.AutoUpdate is
// set, and discovers the analyzers.
func New(ctx context.Context, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.GOMAXPROCS(0)
	}
	if cfg.Database.DataDir == "" {
		cfg.Database.DataDir = cfg.DataDir
	}
	e := &Engine{
		cfg:    cfg,
		log:    cfg.Logger,
		byPath: map[string]*types.Dependency{},
	}
	e.sources = update.Discover(cfg.Sources, update.Env{
		DataDir: cfg.DataDir,
		Offline: cfg.Offline,
		Logger:  cfg.Logger,
	}, cfg.Logger)
	if cfg.AutoUpdate {
		e.Refresh(ctx)
	}
	e.analyzers = analyzer.Discover(cfg.Analyzers, analyzer.Env{
		CacheDir:     cfg.CacheDir,
		OpenDatabase: e.openDatabase,
		Enabled:      cfg.Enabled,
		Logger:       cfg.Logger,
	}, cfg.Logger)
	return e
}

func (e *Engine) openDatabase() (vulndb.Database, error) {
	if e.cfg.OpenDatabase != nil {
		return e.cfg.OpenDatabase()
	}
	return vulndb.New(e.cfg.Database)
}

// Dependencies returns a snapshot of the working set.
func (e *Engine) Dependencies() []*types.Dependency {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*types.Dependency(nil), e.deps...)
}

// SetDependencies replaces the working set.
func (e *Engine) SetDependencies(deps []*types.Dependency) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deps = nil
	e.byPath = make(map[string]*types.Dependency, len(deps))
	for _, d := range deps {
		if d == nil {
			continue
		}
		if _, dup := e.byPath[d.FilePath]; dup {
			continue
		}
		e.byPath[d.FilePath] = d
		e.deps = append(e.deps, d)
	}
}

// AddDependency appends dep to the working set and returns it. When a
// record for the same path exists, that record is returned instead.
func (e *Engine) AddDependency(dep *types.Dependency) *types.Dependency {
	if dep == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.byPath[dep.FilePath]; ok {
		return cur
	}
	e.byPath[dep.FilePath] = dep
	e.deps = append(e.deps, dep)
	return dep
}

// RemoveDependency drops dep from the working set and reports whether it
// was present.
func (e *Engine) RemoveDependency(dep *types.Dependency) bool {
	if dep == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, d := range e.deps {
		if d == dep {
			e.deps = append(e.deps[:i:i], e.deps[i+1:]...)
			if e.byPath[dep.FilePath] == dep {
				delete(e.byPath, dep.FilePath)
			}
			return true
		}
	}
	return false
}

// Analyzers returns the analyzers of phase p in registration order.
func (e *Engine) Analyzers(p analyzer.Phase) []analyzer.Analyzer {
	return e.analyzers.ByPhase(p)
}

// AllAnalyzers returns every analyzer in execution order.
func (e *Engine) AllAnalyzers() []analyzer.Analyzer {
	return e.analyzers.All()
}

// Sources returns the discovered data sources.
func (e *Engine) Sources() []update.DataSource {
	return e.sources.Sources()
}

// SupportsExtension reports whether any file-type analyzer accepts ext.
// Every analyzer is asked, even after one has accepted.
func (e *Engine) SupportsExtension(ext string) bool {
	if ext == "" {
		return false
	}
	ok := false
	for _, a := range e.analyzers.FileTypes() {
		ok = a.SupportsExtension(ext) || ok
	}
	return ok
}

// Index returns the search index opened for the current run, or nil.
func (e *Engine) Index() index.Searcher {
	e.ixMu.RLock()
	defer e.ixMu.RUnlock()
	if e.ix == nil {
		return nil
	}
	return e.ix
}

// Cleanup releases the search index.
func (e *Engine) Cleanup() {
	e.ixMu.Lock()
	defer e.ixMu.Unlock()
	if e.ix != nil {
		if err := e.ix.Close(); err != nil {
			e.log.WithError(err).Debug("closing index")
		}
		e.ix = nil
	}
}

var _ analyzer.Engine = (*Engine)(nil)
