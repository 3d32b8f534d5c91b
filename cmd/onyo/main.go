// Package main is the entry point for the onyo CLI tool.
package main

import (
	"os"

	"github.com/onyo-org/onyo/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
