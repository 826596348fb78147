// Package main provides the entry point for the memengine CLI.
package main

import (
	"os"

	"github.com/memengine/memengine/cmd/memengine/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
