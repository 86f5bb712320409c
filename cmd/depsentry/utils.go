package depsentry

import (
	"runtime/debug"

	semver3 "github.com/blang/semver"
	semver "github.com/blang/semver/v4"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
)

const releaseRepo = "depsentry/depsentry"

// selfUpdate replaces the running binary with the latest release and
// returns the version now installed.
func selfUpdate() (string, error) {
	v := version
	// Use build info if tag overridden at build-time
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(v) == 0 {
				v = s.Value
			}
		}
	}
	ver, err := semver.ParseTolerant(v)
	if err != nil {
		ver = semver.MustParse("0.0.0")
	}
	latest, err := selfupdate.UpdateSelf(semver3.MustParse(ver.String()), releaseRepo)
	if err != nil {
		return "", err
	}
	return latest.Version.String(), nil
}

// The pick helpers return the flag value when set, otherwise the first
// non-empty configured value, in precedence order.

func pickString(cli string, vals ...*string) string {
	if cli != "" {
		return cli
	}
	for _, v := range vals {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func pickInt(cli int, vals ...*int) int {
	if cli != 0 {
		return cli
	}
	for _, v := range vals {
		if v != nil && *v != 0 {
			return *v
		}
	}
	return 0
}

func pickInt64(cli int64, vals ...*int64) int64 {
	if cli != 0 {
		return cli
	}
	for _, v := range vals {
		if v != nil && *v != 0 {
			return *v
		}
	}
	return 0
}

func pickFloat(cli float64, vals ...*float64) float64 {
	if cli != 0 {
		return cli
	}
	for _, v := range vals {
		if v != nil && *v != 0 {
			return *v
		}
	}
	return 0
}

func pickBool(cli bool, vals ...*bool) bool {
	if cli {
		return true
	}
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return false
}

func strPtr(s string) *string     { return &s }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
