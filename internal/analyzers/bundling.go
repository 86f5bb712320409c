package analyzers

import (
	"context"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/types"
)

// Bundling merges dependencies with identical content: the first record
// in the working set keeps the others as related dependencies and the
// copies are removed.
type Bundling struct {
	base
}

func NewBundling(env analyzer.Env) (analyzer.Analyzer, error) {
	return &Bundling{base: newBase("bundling", analyzer.Final, env)}, nil
}

func (b *Bundling) Analyze(_ context.Context, dep *types.Dependency, eng analyzer.Engine) error {
	_, sha, _ := dep.Hashes()
	if sha == "" {
		return nil
	}
	for _, other := range eng.Dependencies() {
		if _, s, _ := other.Hashes(); s != sha {
			continue
		}
		if other == dep {
			return nil
		}
		other.AddRelated(dep)
		for _, r := range dep.Related() {
			other.AddRelated(r)
		}
		for _, id := range dep.Identifiers() {
			other.AddIdentifier(id)
		}
		for _, v := range dep.Vulnerabilities() {
			other.AddVulnerability(v)
		}
		if eng.RemoveDependency(dep) {
			b.log.WithField("path", dep.FilePath).Debugf("merged into %s", other.FilePath)
		}
		return nil
	}
	return nil
}
