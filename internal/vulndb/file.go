package vulndb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	doublestar "github.com/bmatcuk/doublestar/v4"

	"github.com/depsentry/depsentry/internal/types"
)

// FeedPattern matches feed documents below the data directory.
const FeedPattern = "**/*.feed.json"

// FileDB serves feeds found under a data directory. A missing directory
// opens as an empty database.
type FileDB struct {
	dir string

	mu       sync.RWMutex
	open     bool
	products []Product
	byCPE    map[string][]types.Vulnerability
}

// NewFileDB returns an unopened FileDB rooted at dir.
func NewFileDB(dir string) *FileDB {
	return &FileDB{dir: dir}
}

// Open loads every feed under the data directory.
func (db *FileDB) Open(ctx context.Context) error {
	if db.dir == "" {
		return &DatabaseError{Op: "open", Err: errors.New("data directory is required")}
	}
	products := map[string]Product{}
	byCPE := map[string][]types.Vulnerability{}

	st, err := os.Stat(db.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return &DatabaseError{Op: "open", Err: err}
	case !st.IsDir():
		return &DatabaseError{Op: "open", Err: fmt.Errorf("%s is not a directory", db.dir)}
	default:
		matches, err := doublestar.Glob(os.DirFS(db.dir), FeedPattern)
		if err != nil {
			return &DatabaseError{Op: "open", Err: err}
		}
		sort.Strings(matches)
		for _, rel := range matches {
			if err := ctx.Err(); err != nil {
				return &DatabaseError{Op: "open", Err: err}
			}
			feed, err := ReadFeed(filepath.Join(db.dir, filepath.FromSlash(rel)))
			if err != nil {
				return &DatabaseError{Op: "open", Err: err}
			}
			for _, p := range feed.Products {
				if p.CPE == "" {
					continue
				}
				products[p.CPE] = p
			}
			for _, r := range feed.Vulnerabilities {
				for _, cpe := range r.CPEs {
					byCPE[cpe] = appendUnique(byCPE[cpe], toVulnerability(r, cpe))
				}
			}
		}
	}

	list := make([]Product, 0, len(products))
	for _, p := range products {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CPE < list[j].CPE })

	db.mu.Lock()
	db.products = list
	db.byCPE = byCPE
	db.open = true
	db.mu.Unlock()
	return nil
}

// Close releases the loaded data. It is safe to call more than once.
func (db *FileDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.open = false
	db.products = nil
	db.byCPE = nil
	return nil
}

// Products returns the product dictionary sorted by CPE.
func (db *FileDB) Products(_ context.Context) ([]Product, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if !db.open {
		return nil, &DatabaseError{Op: "products", Err: ErrNotOpen}
	}
	return append([]Product(nil), db.products...), nil
}

// Vulnerabilities returns the vulnerabilities recorded for cpe.
func (db *FileDB) Vulnerabilities(_ context.Context, cpe string) ([]types.Vulnerability, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if !db.open {
		return nil, &DatabaseError{Op: "vulnerabilities", Err: ErrNotOpen}
	}
	return append([]types.Vulnerability(nil), db.byCPE[cpe]...), nil
}

// ReadFeed parses one feed document.
func ReadFeed(path string) (Feed, error) {
	var feed Feed
	b, err := os.ReadFile(path)
	if err != nil {
		return feed, err
	}
	if err := json.Unmarshal(b, &feed); err != nil {
		return feed, fmt.Errorf("parse feed %s: %w", path, err)
	}
	return feed, nil
}

// WriteFeed writes feed to path, creating parent directories.
func WriteFeed(path string, feed Feed) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func appendUnique(list []types.Vulnerability, v types.Vulnerability) []types.Vulnerability {
	for _, e := range list {
		if e.ID == v.ID {
			return list
		}
	}
	return append(list, v)
}
