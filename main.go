package main

import "github.com/depsentry/depsentry/cmd/depsentry"

func main() { depsentry.Execute() }
