// Package main is the entry point for the cost-onprem installer CLI.
//
// cost-onprem installs the Cost Management on-premise chart into a
// Kubernetes or OpenShift cluster. It resolves storage, broker and identity
// settings from the live cluster, provisions the secrets and buckets the
// chart expects and then installs or upgrades the release.
//
// Commands: install (default), status, health, cleanup, version.
//
// For detailed usage information, run:
//
//	cost-onprem --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cost-onprem/installer/cmd/cost-onprem/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
