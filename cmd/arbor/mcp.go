package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts Arbor as an MCP Server so that AI agents can list, validate and
run models as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		baseURL, _ := cmd.Flags().GetString("base-url")

		return cli.ServeMCP(cmd.Context(), cli.MCPOptions{
			Options:   commonOptions(cmd),
			Transport: transport,
			Addr:      fmt.Sprintf(":%d", port),
			BaseURL:   baseURL,
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public URL of the SSE server (default http://localhost:<port>)")
}
