// Package main provides the entry point for the flowcheck CLI.
package main

import (
	"os"

	"github.com/flowcheck/flowcheck/cmd/flowcheck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
