package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/depsentry/depsentry/internal/report"
)

const resultsFile = "last_scan.json"

// ScanResults stores the dependencies and metadata from a scan
type ScanResults struct {
	Dependencies []report.Dependency `json:"dependencies"`
	Timestamp    time.Time           `json:"timestamp"`
	Roots        []string            `json:"roots"`
	Count        int                 `json:"count"`
}

// SaveResults saves scan results to the cache directory
func SaveResults(dir string, roots []string, deps []report.Dependency) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	results := ScanResults{
		Dependencies: deps,
		Timestamp:    time.Now(),
		Roots:        roots,
		Count:        len(deps),
	}
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, resultsFile), b, 0o644)
}

// LoadResults loads the last scan results from the cache directory
func LoadResults(dir string) (ScanResults, error) {
	var results ScanResults
	f, err := os.ReadFile(filepath.Join(dir, resultsFile))
	if err != nil {
		return results, err
	}
	if err := json.Unmarshal(f, &results); err != nil {
		return results, err
	}
	return results, nil
}
