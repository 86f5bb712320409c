package types

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Severity is a coarse-grained risk level for a vulnerability.
type Severity string

const (
	SevLow      Severity = "low"
	SevMed      Severity = "medium"
	SevHigh     Severity = "high"
	SevCritical Severity = "critical"
)

// SeverityFromCVSS maps a CVSS base score onto a Severity bucket.
func SeverityFromCVSS(score float64) Severity {
	switch {
	case score >= 9.0:
		return SevCritical
	case score >= 7.0:
		return SevHigh
	case score >= 4.0:
		return SevMed
	default:
		return SevLow
	}
}

// EvidenceType names one of the evidence collections of a dependency.
type EvidenceType string

const (
	EvidenceVendor  EvidenceType = "vendor"
	EvidenceProduct EvidenceType = "product"
	EvidenceVersion EvidenceType = "version"
)

// Confidence ranks how much an analyzer trusts a piece of evidence.
type Confidence int

const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
	ConfidenceHighest
)

// Evidence is one observation an analyzer made about a dependency.
type Evidence struct {
	Source     string     `json:"source"`
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	Confidence Confidence `json:"confidence"`
}

// Identifier names a dependency in an external namespace, e.g. a CPE.
type Identifier struct {
	Type       string     `json:"type"`
	Value      string     `json:"value"`
	URL        string     `json:"url,omitempty"`
	Confidence Confidence `json:"confidence"`
}

// Vulnerability is a known weakness attached to a dependency.
type Vulnerability struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	CVSS        float64  `json:"cvss"`
	Description string   `json:"description,omitempty"`
	CPE         string   `json:"cpe,omitempty"`
}

// Dependency is one artifact discovered on disk. Its identity is the
// absolute file path. Analyzers accrete evidence, identifiers and
// vulnerabilities onto it; all mutators are safe for concurrent use.
type Dependency struct {
	ActualFilePath string `json:"actualFilePath"`
	FilePath       string `json:"filePath"`
	FileName       string `json:"fileName"`
	FileExtension  string `json:"fileExtension,omitempty"`

	mu              sync.Mutex
	md5             string
	sha1            string
	xxhash          string
	evidence        map[EvidenceType][]Evidence
	identifiers     []Identifier
	vulnerabilities []Vulnerability
	related         []*Dependency
}

// NewDependency creates a record for the file at path. The path is made
// absolute when possible.
func NewDependency(path string) *Dependency {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	name := filepath.Base(abs)
	return &Dependency{
		ActualFilePath: abs,
		FilePath:       abs,
		FileName:       name,
		FileExtension:  FileExtension(name),
		evidence:       map[EvidenceType][]Evidence{},
	}
}

// FileExtension returns the lower-cased text after the last dot of name,
// or "" when the name has no extension. Dotfiles such as ".bashrc" have no
// extension.
func FileExtension(name string) string {
	pos := strings.LastIndexByte(name, '.')
	if pos <= 0 || pos == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[pos+1:])
}

// SetHashes records the content digests of the file.
func (d *Dependency) SetHashes(md5, sha1, xx string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.md5, d.sha1, d.xxhash = md5, sha1, xx
}

// Hashes returns the MD5, SHA1 and xxhash64 digests, empty if not computed.
func (d *Dependency) Hashes() (md5, sha1, xx string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.md5, d.sha1, d.xxhash
}

// AddEvidence appends ev to the collection of type t, skipping exact
// duplicates.
func (d *Dependency) AddEvidence(t EvidenceType, ev Evidence) {
	if strings.TrimSpace(ev.Value) == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.evidence == nil {
		d.evidence = map[EvidenceType][]Evidence{}
	}
	for _, e := range d.evidence[t] {
		if e == ev {
			return
		}
	}
	d.evidence[t] = append(d.evidence[t], ev)
}

// Evidence returns a copy of the collection of type t.
func (d *Dependency) Evidence(t EvidenceType) []Evidence {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Evidence(nil), d.evidence[t]...)
}

// EvidenceValues returns the distinct values of collection t with at least
// the given confidence, highest confidence first.
func (d *Dependency) EvidenceValues(t EvidenceType, min Confidence) []string {
	evs := d.Evidence(t)
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Confidence > evs[j].Confidence })
	seen := map[string]bool{}
	var out []string
	for _, e := range evs {
		if e.Confidence < min {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(e.Value))
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// AddIdentifier attaches id unless an identifier with the same type and
// value is already present.
func (d *Dependency) AddIdentifier(id Identifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.identifiers {
		if e.Type == id.Type && e.Value == id.Value {
			return
		}
	}
	d.identifiers = append(d.identifiers, id)
}

// Identifiers returns a copy of the identifiers.
func (d *Dependency) Identifiers() []Identifier {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Identifier(nil), d.identifiers...)
}

// AddVulnerability attaches v unless a vulnerability with the same ID is
// already present.
func (d *Dependency) AddVulnerability(v Vulnerability) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.vulnerabilities {
		if e.ID == v.ID {
			return
		}
	}
	d.vulnerabilities = append(d.vulnerabilities, v)
}

// Vulnerabilities returns a copy of the vulnerabilities.
func (d *Dependency) Vulnerabilities() []Vulnerability {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Vulnerability(nil), d.vulnerabilities...)
}

// AddRelated records other as a duplicate or bundled copy of d.
func (d *Dependency) AddRelated(other *Dependency) {
	if other == nil || other == d {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.related {
		if r == other {
			return
		}
	}
	d.related = append(d.related, other)
}

// Related returns a copy of the related dependencies.
func (d *Dependency) Related() []*Dependency {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Dependency(nil), d.related...)
}
