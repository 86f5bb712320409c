// Package core provides a small, stable facade over depsentry's internal
// engine for external integrations. It re-exports a narrow API surface so
// other tools can depend on a stable import path without importing the
// internal packages.
//
// Example:
//
//	cfg := core.DefaultConfig("/var/lib/depsentry")
//	deps, err := core.Run(ctx, cfg, "./lib")
//	if err != nil { /* handle */ }
package core
