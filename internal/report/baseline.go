package report

import (
	"encoding/json"
	"os"
)

// Baseline lists accepted vulnerabilities that should not be reported.
type Baseline struct {
	Items map[string]bool `json:"items"`
}

func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Items: map[string]bool{}}
	f, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	_ = json.Unmarshal(f, &b)
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	return b, nil
}

// SaveBaseline writes a baseline accepting every vulnerability of deps.
func SaveBaseline(path string, deps []Dependency) error {
	b := Baseline{Items: map[string]bool{}}
	for _, d := range deps {
		for _, v := range d.Vulnerabilities {
			b.Add(d, v.ID)
		}
	}
	return WriteBaseline(path, b)
}

func WriteBaseline(path string, b Baseline) error {
	buf, _ := json.MarshalIndent(b, "", "  ")
	return os.WriteFile(path, buf, 0o644)
}

// Add accepts vulnerability id of d.
func (b *Baseline) Add(d Dependency, id string) {
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	b.Items[key(d, id)] = true
}

// Contains reports whether vulnerability id of d is accepted.
func (b Baseline) Contains(d Dependency, id string) bool {
	return b.Items[key(d, id)]
}

// FilterNew drops the baselined vulnerabilities from deps.
func FilterNew(deps []Dependency, base Baseline) []Dependency {
	out := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		kept := d
		kept.Vulnerabilities = nil
		for _, v := range d.Vulnerabilities {
			if !base.Contains(d, v.ID) {
				kept.Vulnerabilities = append(kept.Vulnerabilities, v)
			}
		}
		out = append(out, kept)
	}
	return out
}

// key identifies a vulnerability of a dependency by content when hashed,
// so a moved file keeps its baseline entry.
func key(d Dependency, id string) string {
	if d.SHA1 != "" {
		return d.SHA1 + "|" + id
	}
	return d.FilePath + "|" + id
}

// NeverFail is a threshold no CVSS score reaches.
const NeverFail = 11.0

// ShouldFail reports whether any vulnerability scores at or above
// threshold. Thresholds above 10 never fail.
func ShouldFail(deps []Dependency, threshold float64) bool {
	if threshold > 10 {
		return false
	}
	for _, d := range deps {
		for _, v := range d.Vulnerabilities {
			if v.CVSS >= threshold {
				return true
			}
		}
	}
	return false
}
