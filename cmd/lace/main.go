// Package main provides the entry point for the Lace CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/lace/cmd/lace/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
