// Package main is the entry point for the filterctl CLI tool.
package main

import (
	"os"

	"github.com/fy0/filterable/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
