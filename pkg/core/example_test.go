package core_test

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/depsentry/depsentry/pkg/core"
)

// ExampleRun shows how to scan a directory and print what was found.
func ExampleRun() {
	cfg := core.DefaultConfig("/var/lib/depsentry")
	cfg.Threads = 4
	cfg.IncludeGlobs = "**/*.jar,**/package.json"

	results, err := core.Run(context.Background(), cfg, ".")
	if errors.Is(err, core.ErrNoData) {
		fmt.Fprintln(os.Stderr, "no vulnerability data; run 'depsentry update' first")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		return
	}
	for _, r := range results {
		for _, v := range r.Vulnerabilities {
			fmt.Printf("%s %s %.1f\n", r.FilePath, v.ID, v.CVSS)
		}
	}
}
