package analyzers

import (
	"context"
	"os"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/types"
)

// GoMod reads go.mod files. The module itself becomes evidence on the
// go.mod record; every require becomes a virtual dependency of its own.
type GoMod struct {
	base
}

func NewGoMod(env analyzer.Env) (analyzer.Analyzer, error) {
	return &GoMod{base: newBase("gomod", analyzer.InformationCollection, env)}, nil
}

func (g *GoMod) SupportsExtension(ext string) bool { return ext == "mod" }

func (g *GoMod) Analyze(_ context.Context, dep *types.Dependency, eng analyzer.Engine) error {
	if dep.FileName != "go.mod" {
		return nil
	}
	data, err := os.ReadFile(dep.ActualFilePath)
	if err != nil {
		return g.fail(dep, err)
	}
	f, err := modfile.ParseLax(dep.ActualFilePath, data, nil)
	if err != nil {
		return g.fail(dep, err)
	}
	if f.Module != nil {
		moduleEvidence(dep, f.Module.Mod.Path, "")
	}
	for _, r := range f.Require {
		child := virtualDependency(dep, r.Mod.Path, r.Mod.Version)
		moduleEvidence(child, r.Mod.Path, r.Mod.Version)
		if got := eng.AddDependency(child); got != child {
			g.log.WithField("path", child.FilePath).Trace("module already in working set")
		}
	}
	return nil
}

// virtualDependency creates a record for a module required by the file of
// parent. It shares the carrier file but has its own identity.
func virtualDependency(parent *types.Dependency, mod, version string) *types.Dependency {
	d := types.NewDependency(parent.ActualFilePath)
	d.FilePath = parent.ActualFilePath + "?" + mod + "@" + version
	d.FileName = mod + "@" + version
	d.FileExtension = ""
	return d
}

var majorSuffix = regexp.MustCompile(`^v[0-9]+$`)

func moduleEvidence(dep *types.Dependency, mod, version string) {
	const src = "go.mod"
	parts := strings.Split(mod, "/")
	if n := len(parts); n > 1 && majorSuffix.MatchString(parts[n-1]) {
		parts = parts[:n-1]
	}
	product := parts[len(parts)-1]
	dep.AddEvidence(types.EvidenceProduct, types.Evidence{Source: src, Name: "module", Value: product, Confidence: types.ConfidenceHighest})
	switch {
	case len(parts) >= 3:
		dep.AddEvidence(types.EvidenceVendor, types.Evidence{Source: src, Name: "module", Value: parts[1], Confidence: types.ConfidenceHigh})
	case len(parts) == 2:
		host := strings.Split(parts[0], ".")
		dep.AddEvidence(types.EvidenceVendor, types.Evidence{Source: src, Name: "module", Value: host[0], Confidence: types.ConfidenceMedium})
	}
	if v := strings.TrimPrefix(version, "v"); v != "" {
		v = strings.TrimSuffix(v, "+incompatible")
		dep.AddEvidence(types.EvidenceVersion, types.Evidence{Source: src, Name: "require", Value: v, Confidence: types.ConfidenceHighest})
	}
}
