// Draftsight - ranked match collector for the Riot API.
package main

import (
	"os"

	"github.com/draftsight/collector/internal/cli"
	"github.com/draftsight/collector/internal/version"
)

// Version information, overridden with -ldflags "-X main.Version=..."
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	// cobra has already printed the error
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
