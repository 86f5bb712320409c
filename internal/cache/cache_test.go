package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/depsentry/depsentry/internal/report"
)

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	// initial load should return empty DB and error
	db, _ := Load(dir)
	if db.Entries == nil {
		t.Fatalf("expected entries map initialized")
	}
	mtime := time.Unix(1700000000, 0)
	db.Put("/x/a.jar", Entry{Size: 3, ModTime: mtime.UnixNano(), SHA1: "deadbeef"})
	if err := Save(dir, db); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, hashesFile)); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	db2, err := Load(dir)
	if err != nil {
		t.Fatalf("load after save: %v", err)
	}
	if got, ok := db2.Lookup("/x/a.jar", 3, mtime); !ok || got.SHA1 != "deadbeef" {
		t.Fatalf("unexpected entry: %+v ok=%v", got, ok)
	}
	if _, ok := db2.Lookup("/x/a.jar", 4, mtime); ok {
		t.Fatalf("size change must invalidate the entry")
	}
	if _, ok := db2.Lookup("/x/a.jar", 3, mtime.Add(time.Second)); ok {
		t.Fatalf("mtime change must invalidate the entry")
	}
}

func TestSave_SkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	db, _ := Load(dir)
	if err := Save(dir, db); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, hashesFile)); !os.IsNotExist(err) {
		t.Fatalf("expected no cache file for an unchanged db, got %v", err)
	}
}

func TestResultsRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	deps := []report.Dependency{{FileName: "a.jar", FilePath: "/x/a.jar"}}
	if err := SaveResults(dir, []string{"/x"}, deps); err != nil {
		t.Fatal(err)
	}
	res, err := LoadResults(dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 1 || res.Dependencies[0].FileName != "a.jar" || res.Roots[0] != "/x" {
		t.Fatalf("unexpected results: %+v", res)
	}
}
