package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/types"
	"github.com/depsentry/depsentry/internal/vulndb"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, e := range r.all() {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

type fake struct {
	name     string
	phase    analyzer.Phase
	rec      *recorder
	initErr  error
	parallel bool
	analyze  func(d *types.Dependency, eng analyzer.Engine) error
	closeFn  func() error
}

func (f *fake) Name() string          { return f.name }
func (f *fake) Phase() analyzer.Phase { return f.phase }
func (f *fake) Parallel() bool        { return f.parallel }
func (f *fake) Initialize(context.Context) error {
	f.rec.add("init:" + f.name)
	return f.initErr
}

func (f *fake) Analyze(_ context.Context, d *types.Dependency, eng analyzer.Engine) error {
	f.rec.add("analyze:" + f.name + ":" + d.FileName)
	if f.analyze != nil {
		return f.analyze(d, eng)
	}
	return nil
}

func (f *fake) Close() error {
	f.rec.add("close:" + f.name)
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fileFake struct {
	fake
	exts  []string
	asked *int
}

func (f *fileFake) SupportsExtension(ext string) bool {
	if f.asked != nil {
		*f.asked++
	}
	for _, e := range f.exts {
		if e == ext {
			return true
		}
	}
	return false
}

func factories(as ...analyzer.Analyzer) []analyzer.Factory {
	out := make([]analyzer.Factory, 0, len(as))
	for _, a := range as {
		a := a
		out = append(out, func(analyzer.Env) (analyzer.Analyzer, error) { return a, nil })
	}
	return out
}

type fakeDB struct {
	mu       sync.Mutex
	products []vulndb.Product
	openErr  error
	opened   int
	closed   int
}

func (db *fakeDB) Open(context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.opened++
	return db.openErr
}

func (db *fakeDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed++
	return nil
}

func (db *fakeDB) Products(context.Context) ([]vulndb.Product, error) {
	return db.products, nil
}

func (db *fakeDB) Vulnerabilities(context.Context, string) ([]types.Vulnerability, error) {
	return nil, nil
}

func seededDB() *fakeDB {
	return &fakeDB{products: []vulndb.Product{
		{CPE: "cpe:/a:apache:struts:2.1.8", Vendor: "apache", Product: "struts", Version: "2.1.8"},
	}}
}

// newTestEngine builds an engine with a null logger and the given
// database; automatic updates are off unless cfg turns them on.
func newTestEngine(t *testing.T, cfg Config, db vulndb.Database) (*Engine, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.TraceLevel)
	cfg.Logger = log
	if db != nil {
		cfg.OpenDatabase = func() (vulndb.Database, error) { return db, nil }
	}
	e := New(context.Background(), cfg)
	t.Cleanup(e.Cleanup)
	return e, hook
}

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, filepath.FromSlash(n))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func entriesAt(hook *test.Hook, level logrus.Level, contains string) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, contains) {
			n++
		}
	}
	return n
}
