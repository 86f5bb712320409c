package engine

import "strings"

// Directories skipped when DefaultExcludes is set: version control
// metadata and tool caches that never hold shipped dependencies.
var defaultExcludeDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	".bzr":          true,
	"CVS":           true,
	".idea":         true,
	".vscode":       true,
	"__pycache__":   true,
	".pytest_cache": true,
	".gradle":       true,
}

func isDefaultDirExcluded(name string) bool {
	return defaultExcludeDirs[name] || strings.HasPrefix(name, ".git")
}
