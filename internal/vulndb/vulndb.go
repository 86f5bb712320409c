// Package vulndb provides access to the vulnerability reference data: the
// list of known products (used to build the search index) and the
// vulnerabilities recorded against each CPE. Two drivers exist: "file",
// which reads JSON feeds from the local data directory, and "postgres".
package vulndb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/depsentry/depsentry/internal/types"
)

// Product is one entry of the product dictionary.
type Product struct {
	CPE     string `json:"cpe"`
	Vendor  string `json:"vendor"`
	Product string `json:"product"`
	Version string `json:"version,omitempty"`
}

// Record is a vulnerability and the CPEs it affects.
type Record struct {
	ID          string   `json:"id"`
	Severity    string   `json:"severity,omitempty"`
	CVSS        float64  `json:"cvss"`
	Description string   `json:"description,omitempty"`
	CPEs        []string `json:"cpes"`
}

// Feed is the on-disk document format of the file driver.
type Feed struct {
	Products        []Product `json:"products"`
	Vulnerabilities []Record  `json:"vulnerabilities"`
}

// Database is the vulnerability reference store.
type Database interface {
	Open(ctx context.Context) error
	Close() error
	Products(ctx context.Context) ([]Product, error)
	Vulnerabilities(ctx context.Context, cpe string) ([]types.Vulnerability, error)
}

// ErrNotOpen is returned by queries issued before Open or after Close.
var ErrNotOpen = errors.New("database is not open")

// DatabaseError reports a failed database operation.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("vulnerability database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Config selects and configures a driver.
type Config struct {
	Driver  string
	DSN     string
	DataDir string
}

// New returns an unopened Database for cfg.
func New(cfg Config) (Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return NewFileDB(cfg.DataDir), nil
	case "postgres", "pgx":
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, &DatabaseError{Op: "configure", Err: errors.New("dsn is required for the postgres driver")}
		}
		return NewSQLDB(cfg.DSN), nil
	default:
		return nil, &DatabaseError{Op: "configure", Err: fmt.Errorf("unknown driver %q", cfg.Driver)}
	}
}

func toVulnerability(r Record, cpe string) types.Vulnerability {
	sev := types.Severity(strings.ToLower(strings.TrimSpace(r.Severity)))
	switch sev {
	case types.SevLow, types.SevMed, types.SevHigh, types.SevCritical:
	case "moderate":
		sev = types.SevMed
	default:
		sev = types.SeverityFromCVSS(r.CVSS)
	}
	return types.Vulnerability{
		ID:          r.ID,
		Severity:    sev,
		CVSS:        r.CVSS,
		Description: r.Description,
		CPE:         cpe,
	}
}
