// Package main provides the CLI entry point for Sentinel, an autonomous
// agent runtime: plan-and-execute loop, tool registry, external tool
// protocol, risk classifier, configurable autonomy levels, human-in-the-
// loop approval, kill switch, and an append-only audit trail.
//
// # Basic Usage
//
// Run a single task to completion and exit:
//
//	sentinel run "summarize the open PRs in this repo" --project .
//
// Start the long-running server (external tool connections, approval
// API, event stream, audit retention cron):
//
//	sentinel serve --config sentinel.yaml
//
// Manage a running server from another terminal:
//
//	sentinel approve list
//	sentinel autonomy set . L3
//	sentinel audit export --since 24h --format csv
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sentinel",
		Short:        "Sentinel - autonomous agent runtime",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildServeCmd(),
		buildApproveCmd(),
		buildAutonomyCmd(),
		buildAuditCmd(),
		buildKillCmd(),
	)

	return rootCmd
}
