// Package main provides the entry point for the keel CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/keel/internal/cli"
)

// Set via -ldflags at build time.
var (
	version = "dev"     //nolint:gochecknoglobals // build info
	commit  = "none"    //nolint:gochecknoglobals // build info
	date    = "unknown" //nolint:gochecknoglobals // build info
)

func main() {
	ctx := context.Background()
	err := cli.Execute(ctx, cli.BuildInfo{Version: version, Commit: commit, Date: date})
	os.Exit(cli.ExitCode(err))
}
