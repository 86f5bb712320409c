package analyzers

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/index"
	"github.com/depsentry/depsentry/internal/types"
	"github.com/depsentry/depsentry/internal/vulndb"
)

// fakeEngine is a minimal working set.
type fakeEngine struct {
	mu   sync.Mutex
	deps []*types.Dependency
	ix   index.Searcher
}

func (e *fakeEngine) Dependencies() []*types.Dependency {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*types.Dependency(nil), e.deps...)
}

func (e *fakeEngine) AddDependency(dep *types.Dependency) *types.Dependency {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.deps {
		if d.FilePath == dep.FilePath {
			return d
		}
	}
	e.deps = append(e.deps, dep)
	return dep
}

func (e *fakeEngine) RemoveDependency(dep *types.Dependency) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, d := range e.deps {
		if d == dep {
			e.deps = append(e.deps[:i], e.deps[i+1:]...)
			return true
		}
	}
	return false
}

func (e *fakeEngine) Index() index.Searcher { return e.ix }

func testEnv(t *testing.T) analyzer.Env {
	t.Helper()
	log, _ := test.NewNullLogger()
	return analyzer.Env{Logger: log}
}

func build(t *testing.T, f analyzer.Factory, env analyzer.Env) analyzer.Analyzer {
	t.Helper()
	a, err := f(env)
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func writeJar(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func evidence(d *types.Dependency, t types.EvidenceType) []string {
	return d.EvidenceValues(t, types.ConfidenceLow)
}

func TestDefaults_AllDiscovered(t *testing.T) {
	log, hook := test.NewNullLogger()
	env := analyzer.Env{OpenDatabase: func() (vulndb.Database, error) { return vulndb.NewFileDB(t.TempDir()), nil }}
	reg := analyzer.Discover(Defaults(), env, log)
	assert.ElementsMatch(t, Names(), reg.Names())
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, "unable to load analyzer", e.Message)
	}
	var exts []string
	for _, ft := range reg.FileTypes() {
		for _, ext := range []string{"jar", "json", "mod", "txt"} {
			if ft.SupportsExtension(ext) {
				exts = append(exts, ext)
			}
		}
	}
	assert.ElementsMatch(t, []string{"jar", "json", "mod"}, exts)
}

func TestNames_FollowDefaults(t *testing.T) {
	assert.Equal(t, []string{"archive", "bundling", "cpe", "filename", "gomod", "hash", "npm", "vulnerability"}, Names())
	assert.Len(t, Names(), len(Defaults()))
}

func TestHash_DigestsAndCache(t *testing.T) {
	dir := t.TempDir()
	cacheDir := t.TempDir()
	p := writeFile(t, dir, "a.jar", "hello")
	env := testEnv(t)
	env.CacheDir = cacheDir

	h := build(t, NewHash, env)
	assert.True(t, analyzer.IsParallel(h))
	dep := types.NewDependency(p)
	require.NoError(t, h.Analyze(context.Background(), dep, &fakeEngine{}))
	md5sum, sha1sum, xx := dep.Hashes()
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", md5sum)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", sha1sum)
	assert.NotEmpty(t, xx)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	_, err := os.Stat(filepath.Join(cacheDir, "hashes.json"))
	require.NoError(t, err)

	again := build(t, NewHash, env)
	dep2 := types.NewDependency(p)
	require.NoError(t, again.Analyze(context.Background(), dep2, &fakeEngine{}))
	_, cached, _ := dep2.Hashes()
	assert.Equal(t, sha1sum, cached)
}

func TestHash_MissingFile(t *testing.T) {
	h := build(t, NewHash, testEnv(t))
	err := h.Analyze(context.Background(), types.NewDependency(filepath.Join(t.TempDir(), "gone.jar")), &fakeEngine{})
	var ae *analyzer.AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "hash", ae.Analyzer)
}

func TestArchive_ManifestAndPom(t *testing.T) {
	p := filepath.Join(t.TempDir(), "struts2-core-2.1.8.jar")
	writeJar(t, p, map[string]string{
		"META-INF/MANIFEST.MF":                                         "Manifest-Version: 1.0\r\nImplementation-Title: Struts 2\r\n Core\r\nImplementation-Version: 2.1.8\r\nImplementation-Vendor: Apache\r\n\r\nName: other\r\nImplementation-Title: ignored\r\n",
		"META-INF/maven/org.apache.struts/struts2-core/pom.properties": "#Generated\ngroupId=org.apache.struts\nartifactId=struts2-core\nversion=2.1.8\n",
		"org/apache/struts2/Main.class":                                "x",
	})
	a := build(t, NewArchive, testEnv(t))
	ft, ok := a.(analyzer.FileTypeAnalyzer)
	require.True(t, ok)
	assert.True(t, ft.SupportsExtension("war"))
	assert.False(t, ft.SupportsExtension("json"))

	dep := types.NewDependency(p)
	require.NoError(t, a.Analyze(context.Background(), dep, &fakeEngine{}))
	assert.Equal(t, "struts2-core", evidence(dep, types.EvidenceProduct)[0])
	assert.Contains(t, evidence(dep, types.EvidenceProduct), "struts 2core")
	assert.NotContains(t, evidence(dep, types.EvidenceProduct), "ignored")
	assert.Contains(t, evidence(dep, types.EvidenceVendor), "apache")
	assert.Equal(t, []string{"2.1.8"}, evidence(dep, types.EvidenceVersion))
}

func TestArchive_CorruptArchive(t *testing.T) {
	p := writeFile(t, t.TempDir(), "broken.jar", "not a zip")
	a := build(t, NewArchive, testEnv(t))
	err := a.Analyze(context.Background(), types.NewDependency(p), &fakeEngine{})
	var ae *analyzer.AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, p, ae.Path)
}

func TestNPM_PackageJSON(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "package.json", `{"name":"@angular/core","version":"4.0.0","author":"Google <x@y.z>"}`)
	other := writeFile(t, dir, "tsconfig.json", `not json at all`)
	a := build(t, NewNPM, testEnv(t))

	dep := types.NewDependency(p)
	require.NoError(t, a.Analyze(context.Background(), dep, &fakeEngine{}))
	assert.Equal(t, []string{"core"}, evidence(dep, types.EvidenceProduct))
	assert.Equal(t, []string{"angular", "core", "google"}, evidence(dep, types.EvidenceVendor))
	assert.Equal(t, []string{"4.0.0"}, evidence(dep, types.EvidenceVersion))

	require.NoError(t, a.Analyze(context.Background(), types.NewDependency(other), &fakeEngine{}))

	bad := writeFile(t, t.TempDir(), "package.json", `{`)
	assert.Error(t, a.Analyze(context.Background(), types.NewDependency(bad), &fakeEngine{}))
}

func TestGoMod_RequiresBecomeDependencies(t *testing.T) {
	p := writeFile(t, t.TempDir(), "go.mod", `module github.com/acme/tool

go 1.22

require (
	github.com/sirupsen/logrus v1.9.3
	github.com/blang/semver/v4 v4.0.0 // indirect
	gopkg.in/yaml.v3 v3.0.1
)
`)
	a := build(t, NewGoMod, testEnv(t))
	dep := types.NewDependency(p)
	eng := &fakeEngine{deps: []*types.Dependency{dep}}
	require.NoError(t, a.Analyze(context.Background(), dep, eng))
	assert.Equal(t, []string{"tool"}, evidence(dep, types.EvidenceProduct))
	assert.Equal(t, []string{"acme"}, evidence(dep, types.EvidenceVendor))

	deps := eng.Dependencies()
	require.Len(t, deps, 4)
	logrus := deps[1]
	assert.Equal(t, p+"?github.com/sirupsen/logrus@v1.9.3", logrus.FilePath)
	assert.Equal(t, p, logrus.ActualFilePath)
	assert.Equal(t, "", logrus.FileExtension)
	assert.Equal(t, []string{"logrus"}, evidence(logrus, types.EvidenceProduct))
	assert.Equal(t, []string{"sirupsen"}, evidence(logrus, types.EvidenceVendor))
	assert.Equal(t, []string{"1.9.3"}, evidence(logrus, types.EvidenceVersion))
	assert.Equal(t, []string{"semver"}, evidence(deps[2], types.EvidenceProduct))
	assert.Equal(t, []string{"gopkg"}, evidence(deps[3], types.EvidenceVendor))

	// A second pass finds the records already present.
	require.NoError(t, a.Analyze(context.Background(), dep, eng))
	assert.Len(t, eng.Dependencies(), 4)
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		in, name, version string
	}{
		{"struts2-core-2.1.8.jar", "struts2-core", "2.1.8"},
		{"commons-lang3-3.12.0.jar", "commons-lang3", "3.12.0"},
		{"log4j-1.2.jar", "log4j", "1.2"},
		{"jquery.min.js", "jquery.min", ""},
		{"axis.jar", "axis", ""},
		{"README", "README", ""},
	}
	for _, c := range cases {
		name, version := SplitName(c.in)
		assert.Equal(t, c.name, name, c.in)
		assert.Equal(t, c.version, version, c.in)
	}
}

func TestFileName_SkipsVirtualRecords(t *testing.T) {
	a := build(t, NewFileName, testEnv(t))
	dep := types.NewDependency("spring-core-5.3.0.jar")
	require.NoError(t, a.Analyze(context.Background(), dep, &fakeEngine{}))
	assert.Equal(t, []string{"5.3.0"}, evidence(dep, types.EvidenceVersion))

	virt := virtualDependency(dep, "example.com/x", "v1.0.0")
	require.NoError(t, a.Analyze(context.Background(), virt, &fakeEngine{}))
	assert.Empty(t, evidence(virt, types.EvidenceProduct))
}

type products []vulndb.Product

func (p products) Products(context.Context) ([]vulndb.Product, error) { return p, nil }

func TestCPE_VersionBoundIdentifiers(t *testing.T) {
	ix := index.New(0)
	require.NoError(t, ix.Open(context.Background(), products{
		{CPE: "cpe:/a:apache:struts:2.1.8", Vendor: "apache", Product: "struts", Version: "2.1.8"},
		{CPE: "cpe:/a:apache:struts:2.3.1", Vendor: "apache", Product: "struts", Version: "2.3.1"},
		{CPE: "cpe:/a:apache:struts", Vendor: "apache", Product: "struts"},
		{CPE: "cpe:/a:other:struts:2.1.8", Vendor: "other", Product: "struts", Version: "2.1.8"},
	}))
	a := build(t, NewCPE, testEnv(t))

	dep := types.NewDependency("struts.jar")
	dep.AddEvidence(types.EvidenceVendor, types.Evidence{Value: "Apache", Confidence: types.ConfidenceHigh})
	dep.AddEvidence(types.EvidenceProduct, types.Evidence{Value: "struts", Confidence: types.ConfidenceHigh})
	dep.AddEvidence(types.EvidenceVersion, types.Evidence{Value: "2.1.8", Confidence: types.ConfidenceHigh})
	require.NoError(t, a.Analyze(context.Background(), dep, &fakeEngine{ix: ix}))

	ids := dep.Identifiers()
	require.Len(t, ids, 2)
	assert.Equal(t, "cpe:/a:apache:struts", ids[0].Value)
	assert.Equal(t, types.ConfidenceLow, ids[0].Confidence)
	assert.Equal(t, "cpe:/a:apache:struts:2.1.8", ids[1].Value)
	assert.Equal(t, types.ConfidenceHighest, ids[1].Confidence)
}

func TestCPE_MatchesVersionAmongManyReleases(t *testing.T) {
	var dict products
	for i := 0; i <= 11; i++ {
		v := fmt.Sprintf("1.%d", i)
		dict = append(dict, vulndb.Product{CPE: "cpe:2.3:a:apache:foo:" + v, Vendor: "apache", Product: "foo", Version: v})
	}
	ix := index.New(0)
	require.NoError(t, ix.Open(context.Background(), dict))
	a := build(t, NewCPE, testEnv(t))

	dep := types.NewDependency("foo-1.9.jar")
	dep.AddEvidence(types.EvidenceVendor, types.Evidence{Value: "apache", Confidence: types.ConfidenceHigh})
	dep.AddEvidence(types.EvidenceProduct, types.Evidence{Value: "foo", Confidence: types.ConfidenceHigh})
	dep.AddEvidence(types.EvidenceVersion, types.Evidence{Value: "1.9", Confidence: types.ConfidenceHigh})
	require.NoError(t, a.Analyze(context.Background(), dep, &fakeEngine{ix: ix}))

	ids := dep.Identifiers()
	require.Len(t, ids, 1)
	assert.Equal(t, "cpe:2.3:a:apache:foo:1.9", ids[0].Value)
	assert.Equal(t, types.ConfidenceHighest, ids[0].Confidence)
}

func TestCPE_NoEvidenceOrIndex(t *testing.T) {
	a := build(t, NewCPE, testEnv(t))
	require.NoError(t, a.Analyze(context.Background(), types.NewDependency("x.jar"), &fakeEngine{}))

	dep := types.NewDependency("x.jar")
	dep.AddEvidence(types.EvidenceProduct, types.Evidence{Value: "x", Confidence: types.ConfidenceHigh})
	err := a.Analyze(context.Background(), dep, &fakeEngine{})
	var ae *analyzer.AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.ErrorIs(t, err, errNoIndex)
}

func TestBuildQueries_EscapesValues(t *testing.T) {
	assert.Equal(t, []string{`product:struts2\-core`}, buildQueries(nil, []string{"struts2-core"}))
	assert.Equal(t, []string{`vendor:a product:b`, `vendor:c product:b`}, buildQueries([]string{"a", "c"}, []string{"b"}))
}

func TestVulnerability_AttachesFromDatabase(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, vulndb.WriteFeed(filepath.Join(dataDir, "nvd.feed.json"), vulndb.Feed{
		Products: []vulndb.Product{{CPE: "cpe:/a:apache:struts:2.1.8", Vendor: "apache", Product: "struts", Version: "2.1.8"}},
		Vulnerabilities: []vulndb.Record{
			{ID: "CVE-2017-5638", CVSS: 10, CPEs: []string{"cpe:/a:apache:struts:2.1.8"}},
			{ID: "CVE-2099-0001", CVSS: 5, CPEs: []string{"cpe:/a:other:thing:1.0"}},
		},
	}))
	var opened []vulndb.Database
	env := testEnv(t)
	env.OpenDatabase = func() (vulndb.Database, error) {
		db := vulndb.NewFileDB(dataDir)
		opened = append(opened, db)
		return db, nil
	}
	a := build(t, NewVulnerability, env)

	dep := types.NewDependency("struts.jar")
	dep.AddIdentifier(types.Identifier{Type: "cpe", Value: "cpe:/a:apache:struts:2.1.8"})
	require.NoError(t, a.Analyze(context.Background(), dep, &fakeEngine{}))
	vulns := dep.Vulnerabilities()
	require.Len(t, vulns, 1)
	assert.Equal(t, "CVE-2017-5638", vulns[0].ID)
	assert.Equal(t, types.SevCritical, vulns[0].Severity)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.Len(t, opened, 1)
	err := a.Analyze(context.Background(), dep, &fakeEngine{})
	assert.ErrorIs(t, err, vulndb.ErrNotOpen)
}

func TestVulnerability_RequiresDatabase(t *testing.T) {
	_, err := NewVulnerability(testEnv(t))
	assert.Error(t, err)
}

func TestBundling_MergesIdenticalFiles(t *testing.T) {
	a := build(t, NewBundling, testEnv(t))
	first := types.NewDependency("lib/a.jar")
	first.SetHashes("m", "same", "x")
	copyDep := types.NewDependency("dist/a.jar")
	copyDep.SetHashes("m", "same", "x")
	copyDep.AddVulnerability(types.Vulnerability{ID: "CVE-1"})
	other := types.NewDependency("lib/b.jar")
	other.SetHashes("m2", "different", "y")
	eng := &fakeEngine{deps: []*types.Dependency{first, copyDep, other}}

	for _, d := range []*types.Dependency{first, copyDep, other} {
		require.NoError(t, a.Analyze(context.Background(), d, eng))
	}
	assert.Equal(t, []*types.Dependency{first, other}, eng.Dependencies())
	assert.Equal(t, []*types.Dependency{copyDep}, first.Related())
	require.Len(t, first.Vulnerabilities(), 1)
}
