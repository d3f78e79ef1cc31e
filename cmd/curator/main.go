// Package main provides the curator binary entry point.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/curator/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
