package main

import (
	"github.com/spf13/cobra"
)

// buildRunCmd creates the "run" command: wire every collaborator
// in-process and execute a single task to completion, with approval
// prompts answered interactively on the terminal.
func buildRunCmd() *cobra.Command {
	var (
		configPath  string
		projectPath string
		maxTokens   int
	)

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run a single task to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, resolveConfigPath(configPath), args[0], projectPath, maxTokens)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&projectPath, "project", "p", ".", "Project path the task operates on")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Token budget ceiling (0 = unbounded)")
	return cmd
}

// buildApproveCmd creates the "approve" command group, a thin HTTP client
// against a running `sentinel serve` instance's approval API.
func buildApproveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Inspect and resolve pending approval requests on a running server",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:8088", "Base URL of a running sentinel serve")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pending approval requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApproveList(cmd, addr)
		},
	}

	decideCmd := &cobra.Command{
		Use:   "decide [request-id] [approve|reject]",
		Short: "Resolve a pending approval request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApproveDecide(cmd, addr, args[0], args[1])
		},
	}

	cmd.AddCommand(listCmd, decideCmd)
	return cmd
}

// buildAutonomyCmd creates the "autonomy" command group.
func buildAutonomyCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "autonomy",
		Short: "Get or set a project's autonomy level on a running server",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:8088", "Base URL of a running sentinel serve")

	getCmd := &cobra.Command{
		Use:   "get [project-path]",
		Short: "Show a project's effective autonomy level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutonomyGet(cmd, addr, args[0])
		},
	}

	setCmd := &cobra.Command{
		Use:   "set [project-path] [L1|L2|L3|L4|L5]",
		Short: "Set a project's autonomy level",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAutonomySet(cmd, addr, args[0], args[1])
		},
	}

	cmd.AddCommand(getCmd, setCmd)
	return cmd
}

// buildAuditCmd creates the "audit" command group.
func buildAuditCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and export the audit ledger from a running server",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:8088", "Base URL of a running sentinel serve")

	var (
		sessionID string
		format    string
		limit     int
	)
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export audit entries as JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuditExport(cmd, addr, sessionID, format, limit)
		},
	}
	exportCmd.Flags().StringVar(&sessionID, "session", "", "Filter to one session ID")
	exportCmd.Flags().StringVar(&format, "format", "json", "Output format: json or csv")
	exportCmd.Flags().IntVar(&limit, "limit", 1000, "Maximum entries to export")

	cmd.AddCommand(exportCmd)
	return cmd
}

// buildKillCmd creates the "kill" command: trip the kill switch on a
// running server, aborting its in-flight run at the next step boundary.
func buildKillCmd() *cobra.Command {
	var addr, reason string
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Trigger the kill switch on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKill(cmd, addr, reason)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8088", "Base URL of a running sentinel serve")
	cmd.Flags().StringVar(&reason, "reason", "user requested", "Reason recorded with the kill signal")
	return cmd
}
