// Package cache persists state between runs: file digests keyed by path,
// size and modification time, and the results of the last scan.
package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const hashesFile = "hashes.json"

// Entry holds the digests of one file as it was when hashed.
type Entry struct {
	Size    int64  `json:"size"`
	ModTime int64  `json:"mtime"`
	MD5     string `json:"md5"`
	SHA1    string `json:"sha1"`
	XXHash  string `json:"xxhash"`
}

// DB maps absolute file paths to their digests. It is safe for
// concurrent use.
type DB struct {
	mu      sync.Mutex
	Entries map[string]Entry `json:"entries"`
	dirty   bool
}

// Load reads the hash cache from dir. A missing or unreadable cache yields
// an empty DB together with the error.
func Load(dir string) (*DB, error) {
	db := &DB{Entries: map[string]Entry{}}
	if dir == "" {
		return db, errors.New("no cache directory")
	}
	f, err := os.ReadFile(filepath.Join(dir, hashesFile))
	if err != nil {
		return db, err
	}
	if err := json.Unmarshal(f, db); err != nil {
		db.Entries = map[string]Entry{}
		return db, err
	}
	if db.Entries == nil {
		db.Entries = map[string]Entry{}
	}
	return db, nil
}

// Save writes the cache to dir when it changed since Load.
func Save(dir string, db *DB) error {
	if db == nil || db.Entries == nil {
		return errors.New("empty cache")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if !db.dirty {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, _ := json.MarshalIndent(db, "", "  ")
	if err := os.WriteFile(filepath.Join(dir, hashesFile), b, 0o644); err != nil {
		return err
	}
	db.dirty = false
	return nil
}

// Lookup returns the cached digests of path if size and mtime still match.
func (db *DB) Lookup(path string, size int64, mtime time.Time) (Entry, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e, ok := db.Entries[path]
	if !ok || e.Size != size || e.ModTime != mtime.UnixNano() {
		return Entry{}, false
	}
	return e, true
}

// Put records the digests of path.
func (db *DB) Put(path string, e Entry) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.Entries == nil {
		db.Entries = map[string]Entry{}
	}
	if db.Entries[path] == e {
		return
	}
	db.Entries[path] = e
	db.dirty = true
}
