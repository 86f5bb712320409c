package report

import (
	"sort"

	"github.com/depsentry/depsentry/internal/types"
)

// Dependency is the reported view of one analyzed dependency.
type Dependency struct {
	FileName        string                                  `json:"fileName"`
	FilePath        string                                  `json:"filePath"`
	MD5             string                                  `json:"md5,omitempty"`
	SHA1            string                                  `json:"sha1,omitempty"`
	Evidence        map[types.EvidenceType][]types.Evidence `json:"evidence,omitempty"`
	Identifiers     []types.Identifier                      `json:"identifiers,omitempty"`
	Vulnerabilities []types.Vulnerability                   `json:"vulnerabilities,omitempty"`
	Related         []string                                `json:"related,omitempty"`
}

// FromDependencies snapshots deps, sorted by path.
func FromDependencies(deps []*types.Dependency) []Dependency {
	out := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		if d == nil {
			continue
		}
		md5, sha1, _ := d.Hashes()
		rd := Dependency{
			FileName:        d.FileName,
			FilePath:        d.FilePath,
			MD5:             md5,
			SHA1:            sha1,
			Identifiers:     d.Identifiers(),
			Vulnerabilities: d.Vulnerabilities(),
		}
		for _, t := range []types.EvidenceType{types.EvidenceVendor, types.EvidenceProduct, types.EvidenceVersion} {
			if ev := d.Evidence(t); len(ev) > 0 {
				if rd.Evidence == nil {
					rd.Evidence = map[types.EvidenceType][]types.Evidence{}
				}
				rd.Evidence[t] = ev
			}
		}
		for _, r := range d.Related() {
			rd.Related = append(rd.Related, r.FilePath)
		}
		sort.Slice(rd.Vulnerabilities, func(i, j int) bool {
			if rd.Vulnerabilities[i].CVSS != rd.Vulnerabilities[j].CVSS {
				return rd.Vulnerabilities[i].CVSS > rd.Vulnerabilities[j].CVSS
			}
			return rd.Vulnerabilities[i].ID < rd.Vulnerabilities[j].ID
		})
		out = append(out, rd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

// MaxCVSS returns the highest CVSS score among the vulnerabilities.
func (d Dependency) MaxCVSS() float64 {
	max := 0.0
	for _, v := range d.Vulnerabilities {
		if v.CVSS > max {
			max = v.CVSS
		}
	}
	return max
}

// Counts tallies vulnerabilities per severity.
type Counts struct {
	Critical, High, Medium, Low int
}

// Total is the number of vulnerabilities counted.
func (c Counts) Total() int { return c.Critical + c.High + c.Medium + c.Low }

// Count tallies the vulnerabilities of deps.
func Count(deps []Dependency) Counts {
	var c Counts
	for _, d := range deps {
		for _, v := range d.Vulnerabilities {
			switch v.Severity {
			case types.SevCritical:
				c.Critical++
			case types.SevHigh:
				c.High++
			case types.SevMed:
				c.Medium++
			default:
				c.Low++
			}
		}
	}
	return c
}
