// Package analyzers holds the analyzers shipped with depsentry.
//
// They run in phase order: hashing, evidence collection from archives,
// manifests and file names, CPE identification against the index,
// vulnerability lookup, and finally bundling of identical files.
package analyzers

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/types"
	"github.com/depsentry/depsentry/internal/vulndb"
)

// Defaults returns the factories of every built-in analyzer.
func Defaults() []analyzer.Factory {
	return []analyzer.Factory{
		NewHash,
		NewArchive,
		NewNPM,
		NewGoMod,
		NewFileName,
		NewCPE,
		NewVulnerability,
		NewBundling,
	}
}

// Names lists the sorted built-in analyzer names. The analyzers are built
// but never initialized.
func Names() []string {
	log := logrus.New()
	log.SetOutput(io.Discard)
	env := analyzer.Env{
		OpenDatabase: func() (vulndb.Database, error) { return nil, errNoDatabase },
		Logger:       log,
	}
	return analyzer.Discover(Defaults(), env, log).Names()
}

type base struct {
	name  string
	phase analyzer.Phase
	log   logrus.FieldLogger
}

func newBase(name string, phase analyzer.Phase, env analyzer.Env) base {
	log := env.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return base{name: name, phase: phase, log: log.WithField("analyzer", name)}
}

func (b base) Name() string          { return b.name }
func (b base) Phase() analyzer.Phase { return b.phase }

func (base) Initialize(context.Context) error { return nil }
func (base) Close() error                     { return nil }

func (b base) fail(dep *types.Dependency, err error) error {
	return &analyzer.AnalysisError{Analyzer: b.name, Path: dep.FilePath, Err: err}
}

var (
	errNoIndex    = errors.New("no index is open")
	errNoDatabase = errors.New("no vulnerability database is open")
)
