package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/mcp"
)

// MCPOptions configures the MCP server.
type MCPOptions struct {
	Options
	// Transport is "stdio" or "sse".
	Transport string
	Addr      string
	BaseURL   string
}

// ServeMCP exposes the workspace as MCP tools until ctx is done or stdin closes.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	logger, err := createLogger(opts.LogLevel)
	if err != nil {
		return err
	}
	eng, err := createEngine(opts.Options, logger, arbor.WithWritableLibrary())
	if err != nil {
		return err
	}

	srvOpts := []mcp.Option{mcp.WithLogger(logger), mcp.WithVersion(arbor.Version)}
	if lib := eng.Library(); lib != nil {
		srvOpts = append(srvOpts, mcp.WithLibrary(lib))
	}
	srv := mcp.NewServer(eng, eng.Workspace(), srvOpts...)

	switch opts.Transport {
	case "stdio":
		logger.Info("Starting Arbor MCP Server (Stdio)")
		return srv.ServeStdio()
	case "sse":
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost" + opts.Addr
		}
		return srv.ServeSSE(ctx, opts.Addr, baseURL)
	default:
		return fmt.Errorf("unknown transport %q, supported: stdio, sse", opts.Transport)
	}
}
