// Package audit keeps an append-only history of scans.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/depsentry/depsentry/internal/git"
	"github.com/depsentry/depsentry/internal/report"
)

const logFile = "scan_history.jsonl"

// ScanRecord summarizes one scan.
type ScanRecord struct {
	Timestamp          time.Time              `json:"timestamp"`
	ScanID             string                 `json:"scan_id"`
	Roots              []string               `json:"roots"`
	Git                git.Metadata           `json:"git"`
	Dependencies       int                    `json:"dependencies"`
	Vulnerable         int                    `json:"vulnerable"`
	Vulnerabilities    report.Counts          `json:"vulnerabilities"`
	NewVulnerabilities int                    `json:"new_vulnerabilities"`
	Duration           string                 `json:"duration"`
	BaselineFile       string                 `json:"baseline_file,omitempty"`
	Top                []VulnerabilitySummary `json:"top,omitempty"`
}

// VulnerabilitySummary is one of the highest scored vulnerabilities of a
// scan.
type VulnerabilitySummary struct {
	ID       string  `json:"id"`
	CVSS     float64 `json:"cvss"`
	Severity string  `json:"severity"`
	Path     string  `json:"path"`
}

type Log struct {
	path string
}

// NewLog returns the history kept in dir.
func NewLog(dir string) *Log {
	return &Log{path: filepath.Join(dir, logFile)}
}

// Path is the location of the history file.
func (l *Log) Path() string { return l.path }

// LoadHistory returns the records, newest first. Unreadable lines are
// skipped.
func (l *Log) LoadHistory() ([]ScanRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan history: %w", err)
	}
	defer f.Close()

	var records []ScanRecord
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var record ScanRecord
		if err := decoder.Decode(&record); err != nil {
			break
		}
		records = append(records, record)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// LogScan appends record, assigning a scan id when it has none.
func (l *Log) LogScan(record ScanRecord) error {
	if record.ScanID == "" {
		record.ScanID = fmt.Sprintf("scan_%d", record.Timestamp.UnixNano())
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open scan history: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(record); err != nil {
		return fmt.Errorf("failed to write scan record: %w", err)
	}
	return nil
}

// Clear removes the history file.
func (l *Log) Clear() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

const topN = 10

// NewScanRecord summarizes a scan of roots. all holds every analyzed
// dependency, fresh the ones left after the baseline was applied.
func NewScanRecord(roots []string, all, fresh []report.Dependency, duration time.Duration, baselineFile string) ScanRecord {
	rec := ScanRecord{
		Timestamp:          time.Now(),
		Roots:              roots,
		Dependencies:       len(all),
		Vulnerabilities:    report.Count(all),
		NewVulnerabilities: report.Count(fresh).Total(),
		Duration:           duration.Round(time.Millisecond).String(),
		BaselineFile:       baselineFile,
	}
	if len(roots) > 0 {
		rec.Git = git.RepoMetadata(roots[0])
	}
	for _, d := range all {
		if len(d.Vulnerabilities) > 0 {
			rec.Vulnerable++
		}
	}
	for _, d := range fresh {
		for _, v := range d.Vulnerabilities {
			rec.Top = append(rec.Top, VulnerabilitySummary{ID: v.ID, CVSS: v.CVSS, Severity: string(v.Severity), Path: d.FilePath})
		}
	}
	sort.SliceStable(rec.Top, func(i, j int) bool { return rec.Top[i].CVSS > rec.Top[j].CVSS })
	if len(rec.Top) > topN {
		rec.Top = rec.Top[:topN]
	}
	return rec
}
