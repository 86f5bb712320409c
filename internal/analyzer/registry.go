package analyzer

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/depsentry/depsentry/internal/factory"
	"github.com/depsentry/depsentry/internal/vulndb"
)

// Env is handed to every factory.
type Env struct {
	// CacheDir holds analyzer state kept between runs; "" disables it.
	CacheDir string
	// OpenDatabase returns a fresh, unopened vulnerability database.
	OpenDatabase func() (vulndb.Database, error)
	// Enabled filters analyzers by name; nil enables all.
	Enabled func(name string) bool
	Logger  logrus.FieldLogger
}

// Factory builds one analyzer.
type Factory func(Env) (Analyzer, error)

// Registry holds the discovered analyzers grouped by phase. It does not
// change after Discover returns.
type Registry struct {
	byPhase map[Phase][]Analyzer
}

// Discover builds every analyzer from factories, in order. A factory that
// fails, panics or returns nil is logged and skipped.
func Discover(factories []Factory, env Env, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if env.Logger == nil {
		env.Logger = log
	}
	reg := &Registry{byPhase: map[Phase][]Analyzer{}}
	for i, f := range factories {
		if f == nil {
			continue
		}
		a, err := factory.Build[Env, Analyzer](f, env, "analyzer")
		if err != nil {
			log.WithError(err).WithField("factory", i).Error("unable to load analyzer")
			continue
		}
		if !a.Phase().Valid() {
			log.WithField("analyzer", a.Name()).Errorf("analyzer declares unknown phase %d", int(a.Phase()))
			continue
		}
		if env.Enabled != nil && !env.Enabled(a.Name()) {
			log.WithField("analyzer", a.Name()).Debug("analyzer disabled by configuration")
			continue
		}
		reg.byPhase[a.Phase()] = append(reg.byPhase[a.Phase()], a)
		log.WithFields(logrus.Fields{"analyzer": a.Name(), "phase": a.Phase()}).Trace("analyzer loaded")
	}
	return reg
}

// ByPhase returns the analyzers of p in registration order.
func (r *Registry) ByPhase(p Phase) []Analyzer {
	if r == nil {
		return nil
	}
	return append([]Analyzer(nil), r.byPhase[p]...)
}

// All returns every analyzer, by phase then registration order.
func (r *Registry) All() []Analyzer {
	var out []Analyzer
	for _, p := range Phases() {
		out = append(out, r.ByPhase(p)...)
	}
	return out
}

// FileTypes returns the file-type scoped analyzers.
func (r *Registry) FileTypes() []FileTypeAnalyzer {
	var out []FileTypeAnalyzer
	for _, a := range r.All() {
		if ft, ok := a.(FileTypeAnalyzer); ok {
			out = append(out, ft)
		}
	}
	return out
}

// Names returns the sorted analyzer names.
func (r *Registry) Names() []string {
	var out []string
	for _, a := range r.All() {
		out = append(out, a.Name())
	}
	sort.Strings(out)
	return out
}
