// Package main is the entry point for framehook, the debugger extension
// dispatch core.
package main

import (
	"fmt"
	"os"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd, s := newRootCmd()
	if err := execute(cmd, s); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
