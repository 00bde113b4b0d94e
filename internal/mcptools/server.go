package mcptools

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the four research tools
// registered: start_research, reply_to_clarification, get_session and
// list_sessions.
func NewMCPServer(svc *ResearchService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "deepresearch",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_research",
		Description: "Start a research session. Runs until the report is written or a clarifying question must be answered; check phase and question in the result.",
	}, svc.StartResearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reply_to_clarification",
		Description: "Answer the clarifying question of a session in phase awaiting_input and continue the research.",
	}, svc.ReplyToClarification)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session",
		Description: "Get the status of a research session: phase, completed stages, next stage, and optionally the final report.",
	}, svc.GetSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List research sessions, most recently updated first.",
	}, svc.ListSessions)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP server over streamable HTTP on addr until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
