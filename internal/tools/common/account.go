package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/server"
)

// AccountArg is the optional argument every tool accepts to select a mailbox.
const AccountArg = "account"

// WithAccount declares the optional account argument on a tool.
func WithAccount() mcp.ToolOption {
	return mcp.WithString(AccountArg,
		mcp.Description("Account key from the token store, e.g. 'work' for token_work.json or an email address in a shared token file. Omit to use the default account."),
	)
}

// GetAccountFromArgs returns the trimmed account argument, or "" when the
// account was not specified.
func GetAccountFromArgs(args map[string]any) string {
	if accountVal, ok := args[AccountArg].(string); ok {
		return strings.TrimSpace(accountVal)
	}
	return ""
}

// AccountDisplayName returns the name of account as shown to users.
func AccountDisplayName(account string) string {
	if account == "" {
		return "default"
	}
	return account
}

// GmailClient returns the Gmail client for the account named in request.
func GmailClient(ctx context.Context, sc *server.ServerContext, request mcp.CallToolRequest) (*gmail.Client, error) {
	account := GetAccountFromArgs(request.GetArguments())
	client, err := sc.GmailClientForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Gmail client for account %s: %w", AccountDisplayName(account), err)
	}
	return client, nil
}
