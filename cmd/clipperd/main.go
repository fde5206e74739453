// Package main is the entry point for the clipperd application.
package main

import (
	"os"

	"github.com/OdielDomanie/clipper-bot/cmd/clipperd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
