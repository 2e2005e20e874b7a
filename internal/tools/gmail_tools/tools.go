package gmail_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/server"
	"github.com/teemow/mcp-gmail/internal/tools/common"
)

// EmailPreviewLength is the number of body characters echoed back after a
// send, draft or reply.
const EmailPreviewLength = 200

// handlerFunc is the signature shared by all tool handlers in this package.
type handlerFunc func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error)

// RegisterGmailTools registers all Gmail-related tools with the MCP server.
// In read-only mode only the tools that leave the mailbox and the local
// disk untouched are registered.
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterMessageTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register message tools: %w", err)
	}
	if err := RegisterComposeTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register compose tools: %w", err)
	}
	if err := RegisterLabelTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register label tools: %w", err)
	}
	if err := RegisterAttachmentTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register attachment tools: %w", err)
	}
	if err := RegisterAccountTools(s, sc); err != nil {
		return fmt.Errorf("failed to register account tools: %w", err)
	}
	return nil
}

// addTool registers tool with instrumentation. Mutating tools are skipped in
// read-only mode.
func addTool(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly, mutating bool, tool mcp.Tool, handler handlerFunc) {
	if readOnly && mutating {
		return
	}
	s.AddTool(tool, common.InstrumentedToolHandler(tool.Name, mutating, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handler(ctx, request, sc)
	}))
}

// maxResultsArg reads max_results, falling back to the configured default.
func maxResultsArg(request mcp.CallToolRequest, sc *server.ServerContext) (int64, error) {
	n := request.GetInt("max_results", int(sc.Config().MaxResults))
	if n < 1 {
		return 0, fmt.Errorf("max_results must be positive, got %d", n)
	}
	return int64(n), nil
}

// bodyPreview returns the first EmailPreviewLength characters of body,
// followed by "..." when it was cut.
func bodyPreview(body string) string {
	runes := []rune(body)
	if len(runes) <= EmailPreviewLength {
		return body
	}
	return string(runes[:EmailPreviewLength]) + "..."
}

func writeNextPageToken(b *strings.Builder, token string) {
	if token != "" {
		fmt.Fprintf(b, "next_page_token: %s\n", token)
	}
}

// fetchSummaries resolves message references to their header summaries.
func fetchSummaries(ctx context.Context, client *gmail.Client, refs []string) ([]gmail.Summary, error) {
	summaries := make([]gmail.Summary, 0, len(refs))
	for _, id := range refs {
		msg, err := client.GetMessage(ctx, id, gmail.FormatMetadata)
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", id, err)
		}
		summaries = append(summaries, gmail.Summarize(msg))
	}
	return summaries, nil
}

func toolError(prefix string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}
