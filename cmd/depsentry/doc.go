// Package depsentry provides the command-line interface for depsentry. It
// wires configuration, logging and the analysis engine into subcommands
// (scan, update, analyzers, report, history, config, db).
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/depsentry/depsentry/cmd/depsentry"
//	func main() { depsentry.Execute() }
package depsentry
