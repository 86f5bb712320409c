package core

import (
	"encoding/json"
	"io"

	"github.com/depsentry/depsentry/internal/report"
)

// MarshalResults writes results as the JSON report document.
func MarshalResults(w io.Writer, results []Result, version string) error {
	return report.WriteJSON(w, results, version)
}

// UnmarshalResults decodes a JSON report document, useful for ingestion tests.
func UnmarshalResults(r io.Reader) ([]Result, error) {
	var doc report.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Dependencies, nil
}
