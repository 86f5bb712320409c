package update

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	semver "github.com/blang/semver/v4"
)

const (
	// ReleaseRepo is the GitHub repository releases are published to.
	ReleaseRepo   = "depsentry/depsentry"
	releaseAPI    = "https://api.github.com/repos/" + ReleaseRepo + "/releases/latest"
	cacheFileName = "update.json"
	checkInterval = 24 * time.Hour
)

type versionCache struct {
	LastChecked time.Time `json:"last_checked"`
	Latest      string    `json:"latest"`
}

// ConfigDir returns the per-user configuration directory of the tool, or
// "" when no home directory is known.
func ConfigDir() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "depsentry")
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "depsentry")
}

func loadVersionCache() (versionCache, error) {
	var c versionCache
	dir := ConfigDir()
	if dir == "" {
		return c, errors.New("no config dir")
	}
	b, err := os.ReadFile(filepath.Join(dir, cacheFileName))
	if err != nil {
		return c, err
	}
	_ = json.Unmarshal(b, &c)
	return c, nil
}

func saveVersionCache(c versionCache) {
	dir := ConfigDir()
	if dir == "" {
		return
	}
	_ = os.MkdirAll(dir, 0o755)
	b, _ := json.MarshalIndent(c, "", "  ")
	_ = os.WriteFile(filepath.Join(dir, cacheFileName), b, 0o644)
}

// VersionChecker looks up the latest published release.
type VersionChecker struct {
	URL    string
	Client *http.Client
}

func (vc VersionChecker) latestOnline(ctx context.Context) (string, error) {
	url := vc.URL
	if url == "" {
		url = releaseAPI
	}
	client := vc.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "depsentry-updater")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(resp.Status)
	}
	var obj struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return "", err
	}
	v := obj.TagName
	if v == "" {
		v = obj.Name
	}
	return v, nil
}

// Check returns the latest release and whether it is newer than current.
// It uses a 24h cache and does nothing in CI or when noNetwork is set.
func (vc VersionChecker) Check(ctx context.Context, current string, noNetwork bool) (string, bool, error) {
	if os.Getenv("CI") != "" || noNetwork {
		return "", false, nil
	}
	current = normalize(current)
	c, _ := loadVersionCache()
	latest := c.Latest
	if time.Since(c.LastChecked) > checkInterval || latest == "" {
		if v, err := vc.latestOnline(ctx); err == nil {
			latest = normalize(v)
			c.Latest = latest
			c.LastChecked = time.Now()
			saveVersionCache(c)
		}
	}
	if latest == "" || current == "" {
		return latest, false, nil
	}
	return latest, compare(latest, current) > 0, nil
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	return strings.TrimPrefix(v, "v")
}

// compare orders two versions by semantic version precedence. Versions
// that do not parse compare equal.
func compare(a, b string) int {
	av, errA := semver.ParseTolerant(a)
	bv, errB := semver.ParseTolerant(b)
	if errA != nil || errB != nil {
		return 0
	}
	return av.Compare(bv)
}
