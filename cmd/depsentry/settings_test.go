package depsentry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depsentry/depsentry/internal/artifacts"
	"github.com/depsentry/depsentry/internal/config"
	"github.com/depsentry/depsentry/internal/update"
)

func TestPickHelpers_Precedence(t *testing.T) {
	local, global := "local", "global"
	assert.Equal(t, "cli", pickString("cli", &local, &global))
	assert.Equal(t, "local", pickString("", &local, &global))
	assert.Equal(t, "global", pickString("", nil, &global))
	assert.Equal(t, "", pickString("", nil, nil))

	assert.Equal(t, 3, pickInt(0, nil, intPtr(3)))
	assert.Equal(t, 7.5, pickFloat(0, floatPtr(7.5)))
	assert.True(t, pickBool(false, nil, boolPtr(true)))
	assert.False(t, pickBool(false, boolPtr(false), boolPtr(true)), "first set value wins")
	assert.True(t, pickBool(true, boolPtr(false)))
}

func TestAnalyzerFilter(t *testing.T) {
	assert.Nil(t, analyzerFilter("", " , "))

	only := analyzerFilter("hash, cpe", "cpe")
	assert.True(t, only("hash"))
	assert.True(t, only("cpe"), "enable list wins over disable")
	assert.False(t, only("npm"))

	except := analyzerFilter("", "bundling")
	assert.True(t, except("hash"))
	assert.False(t, except("bundling"))
}

func TestConfigRoot(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(f, []byte("module x\n"), 0o644))

	assert.Equal(t, ".", configRoot(nil))
	assert.Equal(t, dir, configRoot([]string{dir}))
	assert.Equal(t, dir, configRoot([]string{f}))
	assert.Equal(t, filepath.Join(dir, "lib"), configRoot([]string{filepath.Join(dir, "lib", "*.jar")}))
}

func TestEngineConfig_FlagsOverrideFiles(t *testing.T) {
	t.Cleanup(func() { flagThreads, flagOffline, flagDataDir = 0, false, "" })
	fc := config.FileConfig{
		DataDir:         strPtr("/data"),
		Threads:         intPtr(2),
		Include:         strPtr("**/*.jar"),
		DefaultExcludes: boolPtr(false),
		AutoUpdate:      boolPtr(true),
		Disable:         strPtr("bundling"),
		Database:        &config.DatabaseConfig{Driver: strPtr("postgres"), DSN: strPtr("postgres://x")},
		Index:           &config.IndexConfig{CacheSize: intPtr(64)},
	}

	cfg := engineConfig(fc, scanOptions{})
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, 2, cfg.Threads)
	assert.Equal(t, "**/*.jar", cfg.IncludeGlobs)
	assert.False(t, cfg.DefaultExcludes)
	assert.True(t, cfg.AutoUpdate)
	assert.Equal(t, 64, cfg.IndexCacheSize)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "/data", cfg.Database.DataDir)
	require.NotNil(t, cfg.Enabled)
	assert.False(t, cfg.Enabled("bundling"))
	assert.NotEmpty(t, cfg.Analyzers)

	flagThreads, flagOffline, flagDataDir = 8, true, "/flag"
	cfg = engineConfig(fc, scanOptions{Include: "**/go.mod", DefaultExcludes: boolPtr(true)})
	assert.Equal(t, "/flag", cfg.DataDir)
	assert.Equal(t, 8, cfg.Threads)
	assert.Equal(t, "**/go.mod", cfg.IncludeGlobs)
	assert.True(t, cfg.DefaultExcludes)
	assert.True(t, cfg.Offline)
	assert.False(t, cfg.AutoUpdate, "offline never refreshes")
}

func TestSourceFactories(t *testing.T) {
	t.Setenv(config.EnvS3AccessKey, "a")
	t.Setenv(config.EnvS3SecretKey, "s")
	fc := config.FileConfig{Sources: &config.SourcesConfig{
		Feeds: []update.FeedConfig{{Name: "nvd", URL: "http://h"}},
		Git:   []update.GitConfig{{URL: "https://example.invalid/x.git"}},
		S3:    &update.S3Config{Endpoint: "localhost:9000", Bucket: "feeds"},
	}}
	assert.Len(t, sourceFactories(fc), 3)
	assert.Empty(t, sourceFactories(config.FileConfig{}))
}

func TestImageLimits(t *testing.T) {
	l, err := imageLimits(config.FileConfig{})
	require.NoError(t, err)
	assert.Equal(t, artifacts.DefaultLimits, l)

	entries := 10
	l, err = imageLimits(config.FileConfig{Image: &config.ImageConfig{MaxEntries: &entries, TimeBudget: strPtr("30s")}})
	require.NoError(t, err)
	assert.Equal(t, 10, l.MaxEntries)
	assert.Equal(t, artifacts.DefaultLimits.MaxBytes, l.MaxBytes)
	assert.Equal(t, 30*time.Second, l.TimeBudget)

	_, err = imageLimits(config.FileConfig{Image: &config.ImageConfig{TimeBudget: strPtr("soon")}})
	assert.Error(t, err)
}

func TestRedactSecrets(t *testing.T) {
	fc := config.FileConfig{
		Database: &config.DatabaseConfig{DSN: strPtr("postgres://u:p@h/db")},
		Sources:  &config.SourcesConfig{S3: &update.S3Config{Bucket: "b", SecretKey: "s"}},
	}
	out := redactSecrets(fc)
	assert.Equal(t, redacted, *out.Database.DSN)
	assert.Equal(t, redacted, out.Sources.S3.SecretKey)
	assert.Empty(t, out.Sources.S3.AccessKey)
	assert.Equal(t, "postgres://u:p@h/db", *fc.Database.DSN, "input must not change")
}

func TestCheckFormat(t *testing.T) {
	for _, f := range formats {
		assert.NoError(t, checkFormat(f))
	}
	assert.Error(t, checkFormat("xml"))
}
