// Package cmd provides the CLI commands for the TurboMCP server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turbomcp/turbomcp/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "turbomcp",
	Short: "TurboMCP - a Model Context Protocol server runtime",
	Long: `TurboMCP is a JSON-RPC 2.0 Model Context Protocol server runtime.

It dispatches tools/resources/prompts requests from one or more
transports (stdio, Streamable HTTP, WebSocket, TCP, Unix domain socket)
to a local registry, with session lifecycle management, authentication,
rate limiting, and audit logging built in.

Quick start:
  1. Create a config file: turbomcp.yaml
  2. Run: turbomcp serve

Configuration:
  Config is loaded from turbomcp.yaml in the current directory,
  $HOME/.turbomcp/, or /etc/turbomcp/.

  Environment variables can override config values with the TURBOMCP_ prefix.
  Example: TURBOMCP_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the server
  hash-key    Generate an Argon2id hash for an API key
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./turbomcp.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
