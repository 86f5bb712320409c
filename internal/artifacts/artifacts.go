// Package artifacts turns container images into files the engine can
// scan. Layers are streamed and only entries with a supported extension
// are written to disk.
package artifacts

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/depsentry/depsentry/internal/types"
)

// Limits bounds the work done for one image. Zero values mean unlimited.
type Limits struct {
	MaxBytes   int64
	MaxEntries int
	TimeBudget time.Duration
}

// DefaultLimits is used by the CLI.
var DefaultLimits = Limits{
	MaxBytes:   2 << 30,
	MaxEntries: 50000,
	TimeBudget: 10 * time.Minute,
}

// AcceptFunc reports whether files with the lower-cased extension ext
// (without the dot) should be extracted.
type AcceptFunc func(ext string) bool

// Result describes what was extracted.
type Result struct {
	Files []string
	// Skipped counts regular files rejected by the accept function.
	Skipped int
	// Truncated names the limit that stopped extraction, if any.
	Truncated string
}

type budget struct {
	limits   Limits
	deadline time.Time
	written  int64
	entries  int
}

func newBudget(l Limits) *budget {
	b := &budget{limits: l}
	if l.TimeBudget > 0 {
		b.deadline = time.Now().Add(l.TimeBudget)
	}
	return b
}

// exceeded returns the name of the first exhausted limit, or "".
func (b *budget) exceeded() string {
	switch {
	case b.limits.MaxEntries > 0 && b.entries >= b.limits.MaxEntries:
		return "entries"
	case b.limits.MaxBytes > 0 && b.written >= b.limits.MaxBytes:
		return "bytes"
	case !b.deadline.IsZero() && time.Now().After(b.deadline):
		return "time"
	}
	return ""
}

var errBudget = errors.New("byte budget exceeded")

// copyBounded copies r to w, stopping with errBudget when the byte budget
// runs out.
func (b *budget) copyBounded(w io.Writer, r io.Reader) error {
	if b.limits.MaxBytes <= 0 {
		n, err := io.Copy(w, r)
		b.written += n
		return err
	}
	remain := b.limits.MaxBytes - b.written
	n, err := io.CopyN(w, r, remain+1)
	b.written += n
	if n > remain {
		return errBudget
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// cleanEntry maps a tar entry name to a relative slash path, rejecting
// names that would escape the destination.
func cleanEntry(name string) (string, bool) {
	p := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", false
	}
	return p, true
}

// extractTar writes the accepted regular files of r below dir.
func extractTar(r io.Reader, dir string, accept AcceptFunc, b *budget, res *Result) error {
	tr := tar.NewReader(r)
	for {
		if reason := b.exceeded(); reason != "" {
			res.Truncated = reason
			return nil
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		rel, ok := cleanEntry(hdr.Name)
		if !ok || strings.HasPrefix(path.Base(rel), ".wh.") {
			continue
		}
		if accept != nil && !accept(types.FileExtension(path.Base(rel))) {
			res.Skipped++
			continue
		}
		out := filepath.Join(dir, filepath.FromSlash(rel))
		if err := writeEntry(out, tr, b); err != nil {
			if errors.Is(err, errBudget) {
				_ = os.Remove(out)
				res.Truncated = "bytes"
				return nil
			}
			return err
		}
		b.entries++
		res.Files = append(res.Files, out)
	}
}

func writeEntry(out string, r io.Reader, b *budget) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := b.copyBounded(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
