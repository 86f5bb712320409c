package analyzers

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/types"
)

// NPM reads the name and version of package.json manifests. Other JSON
// files are ignored.
type NPM struct {
	base
}

func NewNPM(env analyzer.Env) (analyzer.Analyzer, error) {
	return &NPM{base: newBase("npm", analyzer.InformationCollection, env)}, nil
}

func (n *NPM) SupportsExtension(ext string) bool { return ext == "json" }

func (n *NPM) Parallel() bool { return true }

type packageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Author  any    `json:"author"`
}

func (n *NPM) Analyze(_ context.Context, dep *types.Dependency, _ analyzer.Engine) error {
	if dep.FileName != "package.json" {
		return nil
	}
	b, err := os.ReadFile(dep.ActualFilePath)
	if err != nil {
		return n.fail(dep, err)
	}
	var pkg packageJSON
	if err := json.Unmarshal(b, &pkg); err != nil {
		return n.fail(dep, err)
	}
	const src = "package.json"
	name := strings.TrimSpace(pkg.Name)
	if name != "" {
		product := name
		if scope, rest, ok := strings.Cut(name, "/"); ok && strings.HasPrefix(scope, "@") {
			product = rest
			dep.AddEvidence(types.EvidenceVendor, types.Evidence{Source: src, Name: "scope", Value: strings.TrimPrefix(scope, "@"), Confidence: types.ConfidenceHigh})
		}
		dep.AddEvidence(types.EvidenceProduct, types.Evidence{Source: src, Name: "name", Value: product, Confidence: types.ConfidenceHighest})
		dep.AddEvidence(types.EvidenceVendor, types.Evidence{Source: src, Name: "name", Value: product, Confidence: types.ConfidenceLow})
	}
	if a := author(pkg.Author); a != "" {
		dep.AddEvidence(types.EvidenceVendor, types.Evidence{Source: src, Name: "author", Value: a, Confidence: types.ConfidenceLow})
	}
	if v := strings.TrimSpace(pkg.Version); v != "" {
		dep.AddEvidence(types.EvidenceVersion, types.Evidence{Source: src, Name: "version", Value: v, Confidence: types.ConfidenceHighest})
	}
	return nil
}

// author accepts both the string form "Name <mail> (url)" and the object
// form {"name": ...}.
func author(v any) string {
	switch a := v.(type) {
	case string:
		if i := strings.IndexAny(a, "<("); i >= 0 {
			a = a[:i]
		}
		return strings.TrimSpace(a)
	case map[string]any:
		s, _ := a["name"].(string)
		return strings.TrimSpace(s)
	}
	return ""
}
