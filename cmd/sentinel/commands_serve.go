package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the long-running
// Sentinel server: external tool server connections, the approval/
// autonomy/audit administrative API, and the audit retention cron.
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Sentinel server",
		Long: `Start the Sentinel server.

The server will:
1. Load configuration from the specified file (or sentinel.yaml)
2. Open the embedded SQL database
3. Connect every enabled external tool server (ETP)
4. Start the administrative HTTP API (approvals, autonomy, audit, kill switch, event stream)
5. Schedule audit-store retention cleanup

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}
