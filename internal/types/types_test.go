package types

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileExtension(t *testing.T) {
	cases := map[string]string{
		"lib.jar":         "jar",
		"LIB.JAR":         "jar",
		"archive.tar.gz":  "gz",
		"Makefile":        "",
		".bashrc":         "",
		"trailing.":       "",
		"struts2-2.1.jar": "jar",
	}
	for name, want := range cases {
		assert.Equal(t, want, FileExtension(name), name)
	}
}

func TestNewDependency_AbsolutePath(t *testing.T) {
	d := NewDependency(filepath.Join("testdata", "x.jar"))
	assert.True(t, filepath.IsAbs(d.ActualFilePath))
	assert.Equal(t, "x.jar", d.FileName)
	assert.Equal(t, "jar", d.FileExtension)
}

func TestDependency_EvidenceDedupAndOrder(t *testing.T) {
	d := NewDependency("a.jar")
	d.AddEvidence(EvidenceProduct, Evidence{Source: "m", Name: "n", Value: "Struts", Confidence: ConfidenceLow})
	d.AddEvidence(EvidenceProduct, Evidence{Source: "m", Name: "n", Value: "Struts", Confidence: ConfidenceLow})
	d.AddEvidence(EvidenceProduct, Evidence{Source: "p", Name: "n", Value: "struts2", Confidence: ConfidenceHigh})
	d.AddEvidence(EvidenceProduct, Evidence{Source: "p", Name: "n", Value: "  ", Confidence: ConfidenceHigh})

	assert.Len(t, d.Evidence(EvidenceProduct), 2)
	assert.Equal(t, []string{"struts2", "struts"}, d.EvidenceValues(EvidenceProduct, ConfidenceLow))
	assert.Equal(t, []string{"struts2"}, d.EvidenceValues(EvidenceProduct, ConfidenceMedium))
}

func TestDependency_IdentifiersAndVulnerabilities(t *testing.T) {
	d := NewDependency("a.jar")
	d.AddIdentifier(Identifier{Type: "cpe", Value: "cpe:/a:apache:struts:2.1"})
	d.AddIdentifier(Identifier{Type: "cpe", Value: "cpe:/a:apache:struts:2.1"})
	d.AddVulnerability(Vulnerability{ID: "CVE-1"})
	d.AddVulnerability(Vulnerability{ID: "CVE-1"})
	assert.Len(t, d.Identifiers(), 1)
	assert.Len(t, d.Vulnerabilities(), 1)

	other := NewDependency("b.jar")
	d.AddRelated(other)
	d.AddRelated(other)
	d.AddRelated(d)
	assert.Len(t, d.Related(), 1)
}

func TestSeverityFromCVSS(t *testing.T) {
	assert.Equal(t, SevCritical, SeverityFromCVSS(9.8))
	assert.Equal(t, SevHigh, SeverityFromCVSS(7.5))
	assert.Equal(t, SevMed, SeverityFromCVSS(5.0))
	assert.Equal(t, SevLow, SeverityFromCVSS(1.0))
}
