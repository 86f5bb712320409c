package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/types"
)

// PhaseStats counts what happened during one phase.
type PhaseStats struct {
	Phase       analyzer.Phase
	Initialized int
	InitFailed  int
	Invocations int
	Failures    int
	Duration    time.Duration
}

// RunStats summarizes the last AnalyzeDependencies call.
type RunStats struct {
	Phases       []PhaseStats
	Dependencies int
	Duration     time.Duration
}

// Stats returns the statistics of the last run.
func (e *Engine) Stats() RunStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	s := e.stats
	s.Phases = append([]PhaseStats(nil), e.stats.Phases...)
	return s
}

// AnalyzeDependencies runs every analyzer over the working set, phase by
// phase. It fails only when no vulnerability data is available, in which
// case no analyzer is initialized. Analyzer failures are logged and
// contained: an analyzer that fails to initialize is skipped for the
// phase, and a failure on one dependency does not stop the others.
func (e *Engine) AnalyzeDependencies(ctx context.Context) error {
	started := time.Now()
	if err := e.ensureDataExists(ctx); err != nil {
		e.log.WithError(err).Error("Unable to continue dependency analysis: no vulnerability data available")
		return err
	}

	var run RunStats
	for _, phase := range analyzer.Phases() {
		run.Phases = append(run.Phases, e.runPhase(ctx, phase))
	}
	run.Dependencies = len(e.Dependencies())
	run.Duration = time.Since(started)

	e.statsMu.Lock()
	e.stats = run
	e.statsMu.Unlock()
	e.log.WithFields(logrus.Fields{
		"dependencies": run.Dependencies,
		"duration":     run.Duration.Round(time.Millisecond).String(),
	}).Info("Analysis complete")
	return nil
}

func (e *Engine) runPhase(ctx context.Context, phase analyzer.Phase) PhaseStats {
	ps := PhaseStats{Phase: phase}
	started := time.Now()

	var ready []analyzer.Analyzer
	for _, a := range e.analyzers.ByPhase(phase) {
		if err := e.initialize(ctx, a); err != nil {
			ps.InitFailed++
			continue
		}
		ps.Initialized++
		ready = append(ready, a)
	}
	for _, a := range ready {
		inv, failed := e.execute(ctx, a)
		ps.Invocations += inv
		ps.Failures += failed
	}
	for _, a := range ready {
		e.closeAnalyzer(a)
	}

	ps.Duration = time.Since(started)
	return ps
}

func (e *Engine) initialize(ctx context.Context, a analyzer.Analyzer) error {
	log := e.log.WithFields(logrus.Fields{"analyzer": a.Name(), "phase": a.Phase().String()})
	log.Debug("Initializing analyzer")
	err := analyzer.Safe(func() error { return a.Initialize(ctx) })
	if err != nil {
		log.WithError(err).Errorf("Failed to initialize %s", a.Name())
		e.closeAnalyzer(a)
	}
	return err
}

func (e *Engine) closeAnalyzer(a analyzer.Analyzer) {
	if err := analyzer.Safe(a.Close); err != nil {
		e.log.WithError(err).WithField("analyzer", a.Name()).Tracef("Failed to close %s", a.Name())
	}
}

// execute invokes a on a snapshot of the working set and returns the
// number of invocations and of failed ones. Dependencies added or removed
// meanwhile are seen by the next analyzer.
func (e *Engine) execute(ctx context.Context, a analyzer.Analyzer) (int, int) {
	var targets []*types.Dependency
	for _, d := range e.Dependencies() {
		if analyzer.Supports(a, d.FileExtension) {
			targets = append(targets, d)
		}
	}
	e.log.WithFields(logrus.Fields{"analyzer": a.Name(), "dependencies": len(targets)}).Debug("Begin analyzer")

	var failed atomic.Int64
	if analyzer.IsParallel(a) && e.cfg.Threads > 1 && len(targets) > 1 {
		sem := make(chan struct{}, e.cfg.Threads)
		var wg sync.WaitGroup
		for _, d := range targets {
			wg.Add(1)
			sem <- struct{}{}
			go func(d *types.Dependency) {
				defer wg.Done()
				defer func() { <-sem }()
				if !e.analyzeOne(ctx, a, d) {
					failed.Add(1)
				}
			}(d)
		}
		wg.Wait()
	} else {
		for _, d := range targets {
			if !e.analyzeOne(ctx, a, d) {
				failed.Add(1)
			}
		}
	}
	return len(targets), int(failed.Load())
}

// analyzeOne reports whether a handled d without error.
func (e *Engine) analyzeOne(ctx context.Context, a analyzer.Analyzer, d *types.Dependency) bool {
	err := analyzer.Safe(func() error { return a.Analyze(ctx, d, e) })
	if err == nil {
		return true
	}
	log := e.log.WithFields(logrus.Fields{"analyzer": a.Name(), "path": d.FilePath})
	var ae *analyzer.AnalysisError
	if errors.As(err, &ae) {
		log.Warnf("An error occurred while analyzing '%s'.", d.FilePath)
		log.WithError(err).Debug("analysis failed")
		return false
	}
	log.WithError(err).Warnf("An unexpected error occurred during analysis of '%s'", d.FilePath)
	return false
}
