package report

import (
	"encoding/json"
	"io"
	"time"
)

// Document is the JSON report.
type Document struct {
	Tool         string       `json:"tool"`
	Version      string       `json:"version,omitempty"`
	Generated    time.Time    `json:"generated"`
	Counts       Counts       `json:"counts"`
	Dependencies []Dependency `json:"dependencies"`
}

// WriteJSON writes deps as an indented JSON document.
func WriteJSON(w io.Writer, deps []Dependency, version string) error {
	if deps == nil {
		deps = []Dependency{}
	}
	doc := Document{
		Tool:         "depsentry",
		Version:      version,
		Generated:    time.Now().UTC(),
		Counts:       Count(deps),
		Dependencies: deps,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
