package main

import (
	"context"

	"github.com/spf13/cobra"

	"linedirector/internal/director"
	"linedirector/internal/logging"
	mcpserver "linedirector/internal/mcp"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio for agent integration",
	Long: `Starts an MCP server over stdin/stdout. An agent host connects and calls
the planning tools (compute_plan, list_profiles, explain_plan) directly.

The server monitors for parent process death. When the host disconnects or
restarts, the server self-terminates to prevent zombie processes.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}
	srv := mcpserver.NewServer(director.New(table))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchStdin(ctx, cancel)

	logging.New("mcp").Info("starting linedirector MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
