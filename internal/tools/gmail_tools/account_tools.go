package gmail_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mcp-gmail/internal/server"
)

// RegisterAccountTools registers the token store inspection tools.
func RegisterAccountTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listAccountsTool := mcp.NewTool("list_accounts",
		mcp.WithDescription("List the accounts that have stored credentials. Pass one of them as 'account' to other tools."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	addTool(s, sc, false, false, listAccountsTool, handleListAccounts)
	return nil
}

func handleListAccounts(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	accounts, err := sc.ListAccounts()
	if err != nil {
		return toolError("Failed to list accounts", err), nil
	}
	if len(accounts) == 0 {
		return mcp.NewToolResultText("No accounts have stored credentials. Run 'mcp-gmail auth' to authorize one."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d account(s):\n", len(accounts))
	for _, a := range accounts {
		fmt.Fprintf(&b, "  - %s\n", a)
	}
	return mcp.NewToolResultText(b.String()), nil
}
