package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmcp "github.com/cryams/cryams/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes request moderation
and profile management as tools for AI agents. Supports stdio (default) and
Streamable HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with desktop MCP clients.

In HTTP mode the server has no authentication of its own; bind it to a
loopback address or use the /mcp endpoint of 'cryams serve' instead.`,
		Example: `  cryams mcp                                        # stdio mode
  cryams mcp --transport http --addr 127.0.0.1:3001  # Streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP()
		},
	}

	cmd.Flags().String("transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().String("addr", "127.0.0.1:3001", "Listen address (only used with --transport http)")

	viper.BindPFlag("mcp.transport", cmd.Flags().Lookup("transport"))
	viper.BindPFlag("mcp.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runMCP() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs must stay on stderr.
	logger := newLogger(cfg.Log, os.Stderr)

	profiles, requests := openStores(cfg, logger)
	mcpSrv := cmcp.NewMCPServer(profiles, requests, versionString(), logger)

	switch cfg.MCP.Transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		logger.Info("starting MCP HTTP server", "addr", cfg.MCP.Addr)
		return mcpSrv.ServeHTTP(cfg.MCP.Addr)
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", cfg.MCP.Transport)
	}
}
