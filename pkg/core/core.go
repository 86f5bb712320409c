package core

import (
	"context"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/analyzers"
	"github.com/depsentry/depsentry/internal/engine"
	"github.com/depsentry/depsentry/internal/report"
	"github.com/depsentry/depsentry/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
type (
	Config          = engine.Config
	Engine          = engine.Engine
	Dependency      = types.Dependency
	Vulnerability   = types.Vulnerability
	Identifier      = types.Identifier
	Analyzer        = analyzer.Analyzer
	AnalyzerFactory = analyzer.Factory
	Phase           = analyzer.Phase
	Result          = report.Dependency
)

// ErrNoData is returned by Run when no vulnerability data is available.
var ErrNoData = engine.ErrNoData

// DefaultConfig returns an engine configuration with the built-in
// analyzers and the file database rooted at dataDir.
func DefaultConfig(dataDir string) Config {
	cfg := engine.DefaultConfig(dataDir)
	cfg.Analyzers = analyzers.Defaults()
	return cfg
}

// New creates an engine; the caller must call Cleanup when done.
func New(ctx context.Context, cfg Config) *Engine {
	return engine.New(ctx, cfg)
}

// Run scans paths, analyzes what was found and returns a snapshot of the
// results sorted by path.
func Run(ctx context.Context, cfg Config, paths ...string) ([]Result, error) {
	eng := engine.New(ctx, cfg)
	defer eng.Cleanup()
	eng.Scan(paths...)
	if err := eng.AnalyzeDependencies(ctx); err != nil {
		return nil, err
	}
	return report.FromDependencies(eng.Dependencies()), nil
}

// AnalyzerNames returns the names of the built-in analyzers.
func AnalyzerNames() []string { return analyzers.Names() }
