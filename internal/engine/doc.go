// Package engine drives a dependency scan. It discovers analyzers and data
// sources, refreshes the reference data, walks the requested paths into a
// working set of dependencies, and runs the analyzers over that set phase
// by phase once the vulnerability index is ready. This package is
// internal; external consumers should use the stable facade in pkg/core.
package engine
