package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/depsentry/depsentry/internal/types"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
	Properties       sarifProps   `json:"properties"`
}

type sarifProps struct {
	SecuritySeverity string `json:"security-severity"`
}

type sarifResult struct {
	RuleID    string       `json:"ruleId"`
	RuleIndex int          `json:"ruleIndex"`
	Level     string       `json:"level"`
	Message   sarifMessage `json:"message"`
	Locations []sarifLoc   `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt `json:"artifactLocation"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

func sevToLevel(s types.Severity) string {
	switch s {
	case types.SevCritical, types.SevHigh:
		return "error"
	case types.SevMed:
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF writes one result per vulnerability as SARIF 2.1.0.
func WriteSARIF(w io.Writer, deps []Dependency, version string) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: "depsentry", Version: version}},
		Results: []sarifResult{},
	}
	ruleIndex := map[string]int{}
	for _, d := range deps {
		for _, v := range d.Vulnerabilities {
			idx, ok := ruleIndex[v.ID]
			if !ok {
				idx = len(run.Tool.Driver.Rules)
				ruleIndex[v.ID] = idx
				desc := v.Description
				if desc == "" {
					desc = v.ID
				}
				run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
					ID:               v.ID,
					ShortDescription: sarifMessage{Text: desc},
					Properties:       sarifProps{SecuritySeverity: fmt.Sprintf("%.1f", v.CVSS)},
				})
			}
			run.Results = append(run.Results, sarifResult{
				RuleID:    v.ID,
				RuleIndex: idx,
				Level:     sevToLevel(v.Severity),
				Message:   sarifMessage{Text: fmt.Sprintf("%s is affected by %s (CVSS %.1f)", d.FileName, v.ID, v.CVSS)},
				Locations: []sarifLoc{{
					PhysicalLocation: sarifPhys{ArtifactLocation: sarifArt{URI: d.FilePath}},
				}},
			})
		}
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
