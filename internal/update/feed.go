package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/depsentry/depsentry/internal/vulndb"
)

const metaDir = ".meta"

// maxFeedSize bounds a downloaded feed.
var maxFeedSize int64 = 512 << 20

var errFeedTooLarge = errors.New("feed exceeds the maximum size")

// readFeed reads r up to maxFeedSize bytes.
func readFeed(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxFeedSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > maxFeedSize {
		return nil, errFeedTooLarge
	}
	return b, nil
}

// FeedConfig describes a JSON feed served over HTTP.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// MaxAge skips the download when the last check is more recent.
	MaxAge time.Duration `yaml:"max_age"`
}

type feedMeta struct {
	LastChecked time.Time `json:"last_checked"`
	ETag        string    `json:"etag,omitempty"`
}

// FeedSource downloads one feed into <data_dir>/<name>.feed.json.
type FeedSource struct {
	cfg     FeedConfig
	dataDir string
	client  *http.Client
	offline bool
	now     func() time.Time
}

// NewFeedSource validates cfg and returns the source.
func NewFeedSource(cfg FeedConfig, env Env) (*FeedSource, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, errors.New("feed url is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("feed name is required")
	}
	if strings.ContainsAny(cfg.Name, `/\`) {
		return nil, fmt.Errorf("feed name %q must not contain path separators", cfg.Name)
	}
	if env.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = checkInterval
	}
	return &FeedSource{
		cfg:     cfg,
		dataDir: env.DataDir,
		client:  env.client(),
		offline: env.Offline,
		now:     time.Now,
	}, nil
}

// Feed returns a Factory for cfg.
func Feed(cfg FeedConfig) Factory {
	return func(env Env) (DataSource, error) { return NewFeedSource(cfg, env) }
}

func (s *FeedSource) Name() string { return "feed:" + s.cfg.Name }

// Path is where the feed is stored.
func (s *FeedSource) Path() string {
	return filepath.Join(s.dataDir, s.cfg.Name+".feed.json")
}

func (s *FeedSource) metaPath() string {
	return filepath.Join(s.dataDir, metaDir, s.cfg.Name+".json")
}

func (s *FeedSource) loadMeta() feedMeta {
	var m feedMeta
	b, err := os.ReadFile(s.metaPath())
	if err != nil {
		return m
	}
	_ = json.Unmarshal(b, &m)
	return m
}

func (s *FeedSource) saveMeta(m feedMeta) error {
	if err := os.MkdirAll(filepath.Dir(s.metaPath()), 0o755); err != nil {
		return err
	}
	b, _ := json.MarshalIndent(m, "", "  ")
	return os.WriteFile(s.metaPath(), b, 0o644)
}

// Update downloads the feed unless it was checked within MaxAge or the
// source is offline. The stored copy is replaced only by a feed that
// parses.
func (s *FeedSource) Update(ctx context.Context) error {
	if s.offline {
		return nil
	}
	meta := s.loadMeta()
	_, statErr := os.Stat(s.Path())
	if statErr == nil && s.now().Sub(meta.LastChecked) < s.cfg.MaxAge {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return &UpdateError{Source: s.Name(), Err: err}
	}
	req.Header.Set("User-Agent", "depsentry-updater")
	req.Header.Set("Accept", "application/json")
	if meta.ETag != "" && statErr == nil {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return &UpdateError{Source: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		meta.LastChecked = s.now()
		return s.wrap(s.saveMeta(meta))
	case http.StatusOK:
	default:
		return &UpdateError{Source: s.Name(), Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := readFeed(resp.Body)
	if err != nil {
		return &UpdateError{Source: s.Name(), Err: err}
	}
	var feed vulndb.Feed
	if err := json.Unmarshal(body, &feed); err != nil {
		return &UpdateError{Source: s.Name(), Err: fmt.Errorf("invalid feed: %w", err)}
	}
	if err := writeAtomic(s.Path(), body); err != nil {
		return &UpdateError{Source: s.Name(), Err: err}
	}
	meta.LastChecked = s.now()
	meta.ETag = resp.Header.Get("ETag")
	return s.wrap(s.saveMeta(meta))
}

func (s *FeedSource) wrap(err error) error {
	if err == nil {
		return nil
	}
	return &UpdateError{Source: s.Name(), Err: err}
}

// writeAtomic writes b next to path and renames it into place.
func writeAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
