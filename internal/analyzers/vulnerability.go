package analyzers

import (
	"context"
	"errors"
	"sync"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/types"
	"github.com/depsentry/depsentry/internal/vulndb"
)

// Vulnerability attaches the vulnerabilities recorded against each CPE
// identifier. It holds its own database connection for the phase.
type Vulnerability struct {
	base
	open func() (vulndb.Database, error)

	mu sync.RWMutex
	db vulndb.Database
}

func NewVulnerability(env analyzer.Env) (analyzer.Analyzer, error) {
	if env.OpenDatabase == nil {
		return nil, errors.New("no vulnerability database configured")
	}
	return &Vulnerability{base: newBase("vulnerability", analyzer.FindingAnalysis, env), open: env.OpenDatabase}, nil
}

func (v *Vulnerability) Parallel() bool { return true }

func (v *Vulnerability) Initialize(ctx context.Context) error {
	db, err := v.open()
	if err != nil {
		return err
	}
	if err := db.Open(ctx); err != nil {
		_ = db.Close()
		return err
	}
	v.mu.Lock()
	v.db = db
	v.mu.Unlock()
	return nil
}

func (v *Vulnerability) Analyze(ctx context.Context, dep *types.Dependency, _ analyzer.Engine) error {
	v.mu.RLock()
	db := v.db
	v.mu.RUnlock()
	if db == nil {
		return v.fail(dep, vulndb.ErrNotOpen)
	}
	for _, id := range dep.Identifiers() {
		if id.Type != "cpe" {
			continue
		}
		vulns, err := db.Vulnerabilities(ctx, id.Value)
		if err != nil {
			return v.fail(dep, err)
		}
		for _, vuln := range vulns {
			dep.AddVulnerability(vuln)
		}
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (v *Vulnerability) Close() error {
	v.mu.Lock()
	db := v.db
	v.db = nil
	v.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}
