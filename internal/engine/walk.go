package engine

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/depsentry/depsentry/internal/types"
)

// globForm matches "<dir>/*.<ext>" paths, with either separator.
var globForm = regexp.MustCompile(`^.*[\\/]\*\.[^\\/:*|?<>"]+$`)

// Scan walks each path in order and returns the dependencies found. A
// directory is walked recursively. A path of the form "dir/*.ext" walks
// dir recursively and keeps only files ending in ".ext". Missing paths are
// skipped silently. Every dependency returned is also in the working set.
func (e *Engine) Scan(paths ...string) []*types.Dependency {
	var out []*types.Dependency
	for _, p := range paths {
		var found []*types.Dependency
		if globForm.MatchString(p) {
			found = e.scanGlob(p)
		} else {
			found = e.scanPath(p)
		}
		if len(found) > 0 {
			out = append(out, found...)
		}
	}
	return out
}

// ScanFiles is Scan without the "dir/*.ext" form.
func (e *Engine) ScanFiles(files []string) []*types.Dependency {
	var out []*types.Dependency
	for _, f := range files {
		if found := e.scanPath(f); len(found) > 0 {
			out = append(out, found...)
		}
	}
	return out
}

func (e *Engine) scanGlob(p string) []*types.Dependency {
	pos := strings.LastIndex(p, "*.")
	ext := p[pos+2:]
	dir := p[:len(p)-len(ext)-2]
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		e.log.WithField("path", p).Errorf("Invalid file path provided to scan '%s'", p)
		return nil
	}
	return e.scanDirectory(dir, "."+ext)
}

func (e *Engine) scanPath(p string) []*types.Dependency {
	st, err := os.Stat(p)
	if err != nil {
		return nil
	}
	if st.IsDir() {
		return e.scanDirectory(p, "")
	}
	if !st.Mode().IsRegular() {
		return nil
	}
	if !e.allowed(filepath.Base(p)) {
		return nil
	}
	if d := e.scanFile(p); d != nil {
		return []*types.Dependency{d}
	}
	return nil
}

// scanDirectory walks root. When suffix is set only file names ending in
// it are considered.
func (e *Engine) scanDirectory(root, suffix string) []*types.Dependency {
	var out []*types.Dependency
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			e.log.WithError(err).WithField("path", p).Trace("skipping unreadable path")
			return nil
		}
		if d.IsDir() {
			if p != root && e.cfg.DefaultExcludes && isDefaultDirExcluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if suffix != "" && !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		if !d.Type().IsRegular() {
			// follow file symlinks, not directory ones
			st, err := os.Stat(p)
			if err != nil || !st.Mode().IsRegular() {
				return nil
			}
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = d.Name()
		}
		if !e.allowed(rel) {
			return nil
		}
		if dep := e.scanFile(p); dep != nil {
			out = append(out, dep)
		}
		return nil
	})
	return out
}

// scanFile creates the record for a regular file whose extension some
// file-type analyzer supports.
func (e *Engine) scanFile(p string) *types.Dependency {
	name := filepath.Base(p)
	ext := types.FileExtension(name)
	log := e.log.WithField("path", p)
	if ext == "" {
		log.Tracef("No file extension found on file '%s'. The file was not analyzed.", name)
		return nil
	}
	if !e.SupportsExtension(ext) {
		log.WithFields(logrus.Fields{"extension": ext}).Tracef("The file extension %s is not supported for file '%s'. The file was not analyzed.", ext, name)
		return nil
	}
	return e.AddDependency(types.NewDependency(p))
}

// allowed applies the include/exclude globs to a path relative to the
// scanned root. Include globs, if any, act as a positive filter; exclude
// globs are subtracted last.
func (e *Engine) allowed(relPath string) bool {
	rp := filepath.ToSlash(relPath)
	includes := parseGlobsList(e.cfg.IncludeGlobs)
	excludes := parseGlobsList(e.cfg.ExcludeGlobs)
	if len(includes) > 0 && !matchAnyGlob(rp, includes) {
		return false
	}
	if len(excludes) > 0 && matchAnyGlob(rp, excludes) {
		return false
	}
	return true
}

func parseGlobsList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p, trimGlobPrefix(p))
		}
	}
	return out
}

func matchAnyGlob(pathToMatch string, globs []string) bool {
	base := pathToMatch
	if i := strings.LastIndexByte(pathToMatch, '/'); i >= 0 {
		base = pathToMatch[i+1:]
	}
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, pathToMatch); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}
	return false
}

func trimGlobPrefix(g string) string {
	s := strings.TrimPrefix(g, "./")
	for strings.HasPrefix(s, "**/") {
		s = strings.TrimPrefix(s, "**/")
	}
	return s
}
