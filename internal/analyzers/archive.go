package analyzers

import (
	"archive/zip"
	"bufio"
	"context"
	"io"
	"path"
	"strings"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/types"
)

// maxMetaSize bounds how much of a manifest or properties file is read.
const maxMetaSize = 1 << 20

var archiveExts = map[string]bool{"jar": true, "war": true, "ear": true, "zip": true}

// Archive collects evidence from the manifest and embedded Maven
// metadata of Java archives.
type Archive struct {
	base
}

func NewArchive(env analyzer.Env) (analyzer.Analyzer, error) {
	return &Archive{base: newBase("archive", analyzer.InformationCollection, env)}, nil
}

func (a *Archive) SupportsExtension(ext string) bool { return archiveExts[ext] }

func (a *Archive) Parallel() bool { return true }

func (a *Archive) Analyze(_ context.Context, dep *types.Dependency, _ analyzer.Engine) error {
	zr, err := zip.OpenReader(dep.ActualFilePath)
	if err != nil {
		return a.fail(dep, err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		name := f.Name
		switch {
		case strings.EqualFold(name, "META-INF/MANIFEST.MF"):
			kv, err := readMeta(f, parseManifest)
			if err != nil {
				return a.fail(dep, err)
			}
			manifestEvidence(dep, kv)
		case strings.HasPrefix(name, "META-INF/maven/") && path.Base(name) == "pom.properties":
			kv, err := readMeta(f, parseProperties)
			if err != nil {
				return a.fail(dep, err)
			}
			pomEvidence(dep, kv)
		}
	}
	return nil
}

func readMeta(f *zip.File, parse func(io.Reader) map[string]string) (map[string]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return parse(io.LimitReader(rc, maxMetaSize)), nil
}

// parseManifest reads the main section of a JAR manifest. Lines starting
// with a single space continue the previous value.
func parseManifest(r io.Reader) map[string]string {
	out := map[string]string{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxMetaSize)
	last := ""
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, " ") && last != "" {
			out[last] += line[1:]
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		last = strings.TrimSpace(k)
		out[last] = strings.TrimSpace(v)
	}
	return out
}

func parseProperties(r io.Reader) map[string]string {
	out := map[string]string{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func manifestEvidence(dep *types.Dependency, kv map[string]string) {
	add := func(t types.EvidenceType, key string, c types.Confidence) {
		if v := kv[key]; v != "" {
			dep.AddEvidence(t, types.Evidence{Source: "manifest", Name: key, Value: v, Confidence: c})
		}
	}
	add(types.EvidenceVendor, "Implementation-Vendor", types.ConfidenceHigh)
	add(types.EvidenceVendor, "Implementation-Vendor-Id", types.ConfidenceMedium)
	add(types.EvidenceVendor, "Bundle-Vendor", types.ConfidenceMedium)
	add(types.EvidenceProduct, "Implementation-Title", types.ConfidenceHigh)
	add(types.EvidenceProduct, "Bundle-Name", types.ConfidenceMedium)
	add(types.EvidenceProduct, "Bundle-SymbolicName", types.ConfidenceLow)
	add(types.EvidenceVersion, "Implementation-Version", types.ConfidenceHigh)
	add(types.EvidenceVersion, "Bundle-Version", types.ConfidenceMedium)
}

// Top-level groupId segments that say nothing about the vendor.
var genericGroupSegments = map[string]bool{"org": true, "com": true, "net": true, "io": true, "de": true, "github": true}

func pomEvidence(dep *types.Dependency, kv map[string]string) {
	const src = "pom"
	if g := kv["groupId"]; g != "" {
		dep.AddEvidence(types.EvidenceVendor, types.Evidence{Source: src, Name: "groupId", Value: g, Confidence: types.ConfidenceMedium})
		for _, seg := range strings.Split(g, ".") {
			if seg != "" && !genericGroupSegments[seg] {
				dep.AddEvidence(types.EvidenceVendor, types.Evidence{Source: src, Name: "groupId", Value: seg, Confidence: types.ConfidenceHigh})
				break
			}
		}
	}
	if v := kv["artifactId"]; v != "" {
		dep.AddEvidence(types.EvidenceProduct, types.Evidence{Source: src, Name: "artifactId", Value: v, Confidence: types.ConfidenceHighest})
	}
	if v := kv["version"]; v != "" {
		dep.AddEvidence(types.EvidenceVersion, types.Evidence{Source: src, Name: "version", Value: v, Confidence: types.ConfidenceHighest})
	}
}
