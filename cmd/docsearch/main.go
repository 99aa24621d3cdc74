package main

import (
	"fmt"
	"os"

	"github.com/dshills/docsearch/cmd/docsearch/commands"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	commands.SetVersion(version, buildTime)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
