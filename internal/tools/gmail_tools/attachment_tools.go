package gmail_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mcp-gmail/internal/server"
	"github.com/teemow/mcp-gmail/internal/tools/common"
)

// RegisterAttachmentTools registers attachment listing and download tools.
// Downloads write to the local disk and are not available in read-only mode.
func RegisterAttachmentTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listAttachmentsTool := mcp.NewTool("list_attachments",
		mcp.WithDescription("List attachments of an email message (filename, attachment ID and size)"),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("The Gmail message ID")),
		common.WithAccount(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	addTool(s, sc, readOnly, false, listAttachmentsTool, handleListAttachments)

	downloadTool := mcp.NewTool("download_email_attachments",
		mcp.WithDescription("Download attachments from a message, or from its entire thread, to a local directory. Existing files are never overwritten."),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("The Gmail message ID")),
		mcp.WithString("target_dir", mcp.Description("Directory to save files (default: downloaded_attachments)")),
		mcp.WithBoolean("download_all_in_thread", mcp.Description("Download attachments from all messages in the thread")),
		common.WithAccount(),
	)
	addTool(s, sc, readOnly, true, downloadTool, handleDownloadAttachments)

	return nil
}

func handleListAttachments(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	messageID, err := request.RequireString("message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	attachments, err := client.ListMessageAttachments(ctx, messageID)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to list attachments of message %s", messageID), err), nil
	}
	if len(attachments) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Message %s has no attachments.", messageID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Message %s has %d attachment(s):\n", messageID, len(attachments))
	for _, a := range attachments {
		fmt.Fprintf(&b, "  - %s (id: %s, size: %d bytes)\n", a.Filename, a.AttachmentID, a.Size)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleDownloadAttachments(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	messageID, err := request.RequireString("message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dir := request.GetString("target_dir", "")
	if dir == "" {
		dir = sc.Config().AttachmentDir
	}

	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	saved, err := client.DownloadAttachments(ctx, messageID, dir, request.GetBool("download_all_in_thread", false))
	if err != nil {
		return toolError(fmt.Sprintf("Failed to download attachments of message %s (saved %d file(s))", messageID, len(saved)), err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Downloaded %d file(s) to %s: %s", len(saved), dir, strings.Join(saved, ", "))), nil
}
