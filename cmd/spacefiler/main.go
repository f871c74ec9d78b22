// spacefiler - command-line client for a space-based file server.
package main

import (
	"os"

	"github.com/spacefiler/spacefiler/internal/cli"
	"github.com/spacefiler/spacefiler/internal/version"
)

// Version information, overridden with -ldflags at release time.
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
