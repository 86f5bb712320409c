// Package analyzer defines the contract between the engine and the
// analyzers it runs, and the registry that discovers them.
//
// An analyzer is initialized once per run, invoked once per dependency of
// the working set, and closed once at the end of its phase. A file-type
// analyzer is only invoked on dependencies whose extension it supports,
// and its supported extensions decide which files the scan keeps.
package analyzer

import (
	"context"

	"github.com/depsentry/depsentry/internal/index"
	"github.com/depsentry/depsentry/internal/types"
)

// Analyzer inspects dependencies during one phase of a run.
type Analyzer interface {
	Name() string
	Phase() Phase
	Initialize(ctx context.Context) error
	Analyze(ctx context.Context, dep *types.Dependency, eng Engine) error
	Close() error
}

// FileTypeAnalyzer is an Analyzer restricted to certain file extensions.
type FileTypeAnalyzer interface {
	Analyzer
	// SupportsExtension is called with a lower-cased extension without
	// the leading dot.
	SupportsExtension(ext string) bool
}

// Parallel is implemented by analyzers whose Analyze may run for several
// dependencies at once.
type Parallel interface {
	Parallel() bool
}

// Engine is the view of the running engine given to analyzers. The
// working set may be changed while a phase runs; changes are seen by the
// next analyzer, not by the one making them.
type Engine interface {
	Dependencies() []*types.Dependency
	AddDependency(dep *types.Dependency) *types.Dependency
	RemoveDependency(dep *types.Dependency) bool
	// Index is the search index opened for the run, nil outside one.
	Index() index.Searcher
}

// IsParallel reports whether a is safe to fan out.
func IsParallel(a Analyzer) bool {
	p, ok := a.(Parallel)
	return ok && p.Parallel()
}

// Supports reports whether a should see a dependency with extension ext.
// Analyzers that are not file-type scoped see every dependency.
func Supports(a Analyzer, ext string) bool {
	ft, ok := a.(FileTypeAnalyzer)
	if !ok {
		return true
	}
	return ext != "" && ft.SupportsExtension(ext)
}
