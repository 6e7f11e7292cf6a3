// Package mcptools exposes the refinery as Model Context Protocol tools.
package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/refinery/internal/refinery"
)

// version is set by the linker at build time.
var version = "dev"

// NewRefineryMCPServer creates an MCP server with the four refinery tools
// registered: refine_document, quality_gate, get_run, and list_runs.
func NewRefineryMCPServer(svc *refinery.Service) *mcp.Server {
	rs := NewRefineryService(svc)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "refinery",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refine_document",
		Description: "Score a draft on seven quality dimensions and refine it with targeted edits until it scores 8.0 or the attempt budget runs out. Returns the final document, score progression, and publish tier.",
	}, rs.RefineDocument)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "quality_gate",
		Description: "Score a document once and report its publish tier (high, acceptable, or failed) without changing it.",
	}, rs.QualityGate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_run",
		Description: "Fetch a stored refinement run by ID as a per-attempt report or a Mermaid score diagram.",
	}, rs.GetRun)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List stored refinement runs, newest first, with their final score and tier.",
	}, rs.ListRuns)

	return server
}

// RunMCPServerStdio runs server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunMCPServerHTTP serves server over streamable HTTP on addr until ctx is
// cancelled.
func RunMCPServerHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
