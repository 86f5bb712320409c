package vulndb

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/depsentry/depsentry/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	cpe     TEXT PRIMARY KEY,
	vendor  TEXT NOT NULL,
	product TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS vulnerabilities (
	id          TEXT PRIMARY KEY,
	severity    TEXT NOT NULL DEFAULT '',
	cvss        DOUBLE PRECISION NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS vulnerable_software (
	vuln_id TEXT NOT NULL REFERENCES vulnerabilities(id) ON DELETE CASCADE,
	cpe     TEXT NOT NULL,
	PRIMARY KEY (vuln_id, cpe)
);
CREATE INDEX IF NOT EXISTS vulnerable_software_cpe ON vulnerable_software (cpe);
`

// SQLDB serves reference data from PostgreSQL through the pgx driver.
type SQLDB struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

// NewSQLDB returns an unopened SQLDB for dsn.
func NewSQLDB(dsn string) *SQLDB {
	return &SQLDB{dsn: strings.TrimSpace(dsn)}
}

// Open connects and verifies the connection.
func (s *SQLDB) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return &DatabaseError{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return &DatabaseError{Op: "open", Err: err}
	}
	s.db = db
	return nil
}

// Close releases the connection pool. It is safe to call more than once.
func (s *SQLDB) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLDB) conn(op string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, &DatabaseError{Op: op, Err: ErrNotOpen}
	}
	return s.db, nil
}

// EnsureSchema creates the reference tables when missing.
func (s *SQLDB) EnsureSchema(ctx context.Context) error {
	db, err := s.conn("schema")
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return &DatabaseError{Op: "schema", Err: err}
	}
	return nil
}

// Products returns the product dictionary sorted by CPE.
func (s *SQLDB) Products(ctx context.Context) ([]Product, error) {
	db, err := s.conn("products")
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT cpe, vendor, product, version FROM products ORDER BY cpe`)
	if err != nil {
		return nil, &DatabaseError{Op: "products", Err: err}
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.CPE, &p.Vendor, &p.Product, &p.Version); err != nil {
			return nil, &DatabaseError{Op: "products", Err: err}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Op: "products", Err: err}
	}
	return out, nil
}

// Vulnerabilities returns the vulnerabilities recorded for cpe.
func (s *SQLDB) Vulnerabilities(ctx context.Context, cpe string) ([]types.Vulnerability, error) {
	db, err := s.conn("vulnerabilities")
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
SELECT v.id, v.severity, v.cvss, v.description
FROM vulnerabilities v
JOIN vulnerable_software s ON s.vuln_id = v.id
WHERE s.cpe = $1
ORDER BY v.id`, cpe)
	if err != nil {
		return nil, &DatabaseError{Op: "vulnerabilities", Err: err}
	}
	defer rows.Close()
	var out []types.Vulnerability
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Severity, &r.CVSS, &r.Description); err != nil {
			return nil, &DatabaseError{Op: "vulnerabilities", Err: err}
		}
		out = append(out, toVulnerability(r, cpe))
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Op: "vulnerabilities", Err: err}
	}
	return out, nil
}

// Import upserts the contents of feed in a single transaction.
func (s *SQLDB) Import(ctx context.Context, feed Feed) error {
	db, err := s.conn("import")
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &DatabaseError{Op: "import", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range feed.Products {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO products (cpe, vendor, product, version) VALUES ($1, $2, $3, $4)
ON CONFLICT (cpe) DO UPDATE SET vendor = EXCLUDED.vendor, product = EXCLUDED.product, version = EXCLUDED.version`,
			p.CPE, p.Vendor, p.Product, p.Version); err != nil {
			return &DatabaseError{Op: "import", Err: err}
		}
	}
	for _, r := range feed.Vulnerabilities {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO vulnerabilities (id, severity, cvss, description) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET severity = EXCLUDED.severity, cvss = EXCLUDED.cvss, description = EXCLUDED.description`,
			r.ID, r.Severity, r.CVSS, r.Description); err != nil {
			return &DatabaseError{Op: "import", Err: err}
		}
		for _, cpe := range r.CPEs {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO vulnerable_software (vuln_id, cpe) VALUES ($1, $2) ON CONFLICT DO NOTHING`, r.ID, cpe); err != nil {
				return &DatabaseError{Op: "import", Err: err}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return &DatabaseError{Op: "import", Err: err}
	}
	return nil
}
