package analyzers

import (
	"context"
	"regexp"
	"strings"

	"github.com/blang/semver/v4"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/types"
)

// FileName derives product and version evidence from the file name, e.g.
// struts2-core-2.1.8.jar gives product struts2-core and version 2.1.8.
type FileName struct {
	base
}

func NewFileName(env analyzer.Env) (analyzer.Analyzer, error) {
	return &FileName{base: newBase("filename", analyzer.InformationCollection, env)}, nil
}

func (f *FileName) Parallel() bool { return true }

var reNameVersion = regexp.MustCompile(`^(.+?)[-_.]v?([0-9]+(?:\.[0-9]+)*(?:[-.+][0-9A-Za-z][0-9A-Za-z.+-]*)?)$`)

func (f *FileName) Analyze(_ context.Context, dep *types.Dependency, _ analyzer.Engine) error {
	if dep.ActualFilePath != dep.FilePath {
		return nil
	}
	name, version := SplitName(dep.FileName)
	if name == "" {
		return nil
	}
	const src = "file"
	dep.AddEvidence(types.EvidenceProduct, types.Evidence{Source: src, Name: "name", Value: name, Confidence: types.ConfidenceHigh})
	dep.AddEvidence(types.EvidenceVendor, types.Evidence{Source: src, Name: "name", Value: name, Confidence: types.ConfidenceLow})
	if version != "" {
		dep.AddEvidence(types.EvidenceVersion, types.Evidence{Source: src, Name: "version", Value: version, Confidence: types.ConfidenceMedium})
	}
	return nil
}

// SplitName splits a file name into a product name and a version. The
// version is empty when the trailing part does not parse as a version.
func SplitName(fileName string) (name, version string) {
	base := fileName
	if ext := types.FileExtension(fileName); ext != "" {
		base = fileName[:len(fileName)-len(ext)-1]
	}
	base = strings.TrimSpace(base)
	m := reNameVersion.FindStringSubmatch(base)
	if m == nil {
		return base, ""
	}
	if _, err := semver.ParseTolerant(m[2]); err != nil {
		return base, ""
	}
	return m[1], m[2]
}
