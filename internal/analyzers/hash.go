package analyzers

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/depsentry/depsentry/internal/analyzer"
	"github.com/depsentry/depsentry/internal/cache"
	"github.com/depsentry/depsentry/internal/types"
)

// Hash computes the MD5, SHA1 and xxhash64 digests of every dependency.
// Digests are cached under the cache directory keyed by path, size and
// modification time.
type Hash struct {
	base
	dir string

	mu sync.Mutex
	db *cache.DB
}

func NewHash(env analyzer.Env) (analyzer.Analyzer, error) {
	return &Hash{base: newBase("hash", analyzer.Initial, env), dir: env.CacheDir}, nil
}

func (h *Hash) Parallel() bool { return true }

func (h *Hash) Initialize(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dir == "" {
		h.db = nil
		return nil
	}
	db, err := cache.Load(h.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		h.log.WithError(err).Debug("hash cache unreadable, starting empty")
	}
	h.db = db
	return nil
}

func (h *Hash) Analyze(_ context.Context, dep *types.Dependency, _ analyzer.Engine) error {
	if dep.ActualFilePath != dep.FilePath {
		return nil
	}
	st, err := os.Stat(dep.ActualFilePath)
	if err != nil {
		return h.fail(dep, err)
	}
	h.mu.Lock()
	db := h.db
	h.mu.Unlock()
	if db != nil {
		if e, ok := db.Lookup(dep.ActualFilePath, st.Size(), st.ModTime()); ok {
			dep.SetHashes(e.MD5, e.SHA1, e.XXHash)
			return nil
		}
	}

	md5sum, sha1sum, xx, err := digest(dep.ActualFilePath)
	if err != nil {
		return h.fail(dep, err)
	}
	dep.SetHashes(md5sum, sha1sum, xx)
	if db != nil {
		db.Put(dep.ActualFilePath, cache.Entry{
			Size:    st.Size(),
			ModTime: st.ModTime().UnixNano(),
			MD5:     md5sum,
			SHA1:    sha1sum,
			XXHash:  xx,
		})
	}
	return nil
}

// Close saves the cache. It is safe to call more than once.
func (h *Hash) Close() error {
	h.mu.Lock()
	db := h.db
	h.db = nil
	h.mu.Unlock()
	if db == nil {
		return nil
	}
	return cache.Save(h.dir, db)
}

func digest(path string) (md5sum, sha1sum, xx string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", "", err
	}
	defer func() { _ = f.Close() }()
	m, s, x := md5.New(), sha1.New(), xxhash.New()
	if _, err := io.Copy(io.MultiWriter(m, s, x), f); err != nil {
		return "", "", "", err
	}
	return hex.EncodeToString(m.Sum(nil)), hex.EncodeToString(s.Sum(nil)), strconv.FormatUint(x.Sum64(), 16), nil
}
