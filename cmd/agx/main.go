// Package main provides the entry point for the agx CLI.
package main

import (
	"fmt"
	"os"

	"github.com/dhth/agx/cmd/agx/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
