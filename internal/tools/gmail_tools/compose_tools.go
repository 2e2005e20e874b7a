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

// RegisterComposeTools registers the tools that write messages and drafts.
func RegisterComposeTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	composeEmailTool := mcp.NewTool("compose_email",
		append(outgoingMessageOptions("Compose a new email draft, optionally with file attachments"),
			mcp.WithIdempotentHintAnnotation(false),
		)...,
	)
	addTool(s, sc, readOnly, true, composeEmailTool, handleComposeEmail)

	sendEmailTool := mcp.NewTool("send_email",
		append(outgoingMessageOptions("Compose and send an email, optionally with file attachments"),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithOpenWorldHintAnnotation(true),
		)...,
	)
	addTool(s, sc, readOnly, true, sendEmailTool, handleSendEmail)

	replyTool := mcp.NewTool("reply_to_email",
		mcp.WithDescription("Reply to an existing email, keeping the reply in the same thread. "+
			"By default creates a draft with reply-all. Set reply_all=false to reply only to the sender and send=true to send immediately."),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("The Gmail message ID to reply to")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Reply body content (plain text)")),
		mcp.WithBoolean("reply_all", mcp.DefaultBool(true), mcp.Description("Include all original To/CC recipients (default: true)")),
		mcp.WithString("to", mcp.Description("Override recipient (default: Reply-To, then the original sender)")),
		mcp.WithString("cc", mcp.Description("Additional CC recipients merged with the reply-all recipients")),
		mcp.WithString("bcc", mcp.Description("Blind carbon copy recipients")),
		mcp.WithString("html_body", mcp.Description("HTML version of the body for rich formatting")),
		mcp.WithArray("attachment_paths", mcp.WithStringItems(), mcp.Description("Local file paths to attach")),
		mcp.WithBoolean("send", mcp.DefaultBool(false), mcp.Description("Send immediately instead of creating a draft (default: false)")),
		common.WithAccount(),
	)
	addTool(s, sc, readOnly, true, replyTool, handleReplyToEmail)

	listDraftsTool := mcp.NewTool("list_drafts",
		mcp.WithDescription("List draft emails"),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of drafts to return (default: 10)"), mcp.Min(1)),
		common.WithAccount(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	addTool(s, sc, readOnly, false, listDraftsTool, handleListDrafts)

	getDraftTool := mcp.NewTool("get_draft",
		mcp.WithDescription("Get a draft by ID, including its message content"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("The draft ID")),
		common.WithAccount(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	addTool(s, sc, readOnly, false, getDraftTool, handleGetDraft)

	sendDraftTool := mcp.NewTool("send_draft",
		mcp.WithDescription("Send an existing draft"),
		mcp.WithString("draft_id", mcp.Required(), mcp.Description("The draft ID to send")),
		common.WithAccount(),
		mcp.WithOpenWorldHintAnnotation(true),
	)
	addTool(s, sc, readOnly, true, sendDraftTool, handleSendDraft)

	return nil
}

func outgoingMessageOptions(description string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("to", mcp.Required(), mcp.Description("Recipient email address(es), comma-separated for multiple recipients")),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Email subject")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Email body content (plain text)")),
		mcp.WithString("cc", mcp.Description("Carbon copy recipients, comma-separated")),
		mcp.WithString("bcc", mcp.Description("Blind carbon copy recipients, comma-separated")),
		mcp.WithString("html_body", mcp.Description("HTML version of the body; the message is sent as multipart/alternative")),
		mcp.WithArray("attachment_paths", mcp.WithStringItems(), mcp.Description("Local file paths to attach")),
		common.WithAccount(),
	}
}

// outgoingFromRequest reads the fields shared by compose_email and send_email.
func outgoingFromRequest(request mcp.CallToolRequest) (gmail.OutgoingMessage, error) {
	to, err := request.RequireString("to")
	if err != nil {
		return gmail.OutgoingMessage{}, err
	}
	subject, err := request.RequireString("subject")
	if err != nil {
		return gmail.OutgoingMessage{}, err
	}
	body, err := request.RequireString("body")
	if err != nil {
		return gmail.OutgoingMessage{}, err
	}
	if strings.TrimSpace(to) == "" {
		return gmail.OutgoingMessage{}, fmt.Errorf("'to' must not be empty")
	}
	return gmail.OutgoingMessage{
		To:          to,
		Cc:          request.GetString("cc", ""),
		Bcc:         request.GetString("bcc", ""),
		Subject:     subject,
		Body:        body,
		HTMLBody:    request.GetString("html_body", ""),
		Attachments: request.GetStringSlice("attachment_paths", nil),
	}, nil
}

func formatOutgoing(headline string, msg gmail.OutgoingMessage) string {
	return fmt.Sprintf("\n%s\nTo: %s\nSubject: %s\nCC: %s\nBCC: %s\nAttachments: %d file(s)\nBody: %s\n",
		headline, msg.To, msg.Subject, msg.Cc, msg.Bcc, len(msg.Attachments), bodyPreview(msg.Body))
}

func handleComposeEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	msg, err := outgoingFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	draft, err := client.CreateEmailDraft(ctx, msg)
	if err != nil {
		return toolError("Failed to create draft", err), nil
	}
	return mcp.NewToolResultText(formatOutgoing("Email draft created with ID: "+draft.Id, msg)), nil
}

func handleSendEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	msg, err := outgoingFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sent, err := client.SendEmail(ctx, msg)
	if err != nil {
		return toolError("Failed to send email", err), nil
	}
	return mcp.NewToolResultText(formatOutgoing("Email sent successfully with ID: "+sent.Id, msg)), nil
}

func handleReplyToEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	messageID, err := request.RequireString("message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := request.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := gmail.ReplyOptions{
		Body:        body,
		HTMLBody:    request.GetString("html_body", ""),
		ReplyAll:    request.GetBool("reply_all", true),
		To:          request.GetString("to", ""),
		Cc:          request.GetString("cc", ""),
		Bcc:         request.GetString("bcc", ""),
		Attachments: request.GetStringSlice("attachment_paths", nil),
	}
	send := request.GetBool("send", false)

	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	original, err := client.GetMessage(ctx, messageID, gmail.FormatMetadata)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to get message %s", messageID), err), nil
	}
	headers := gmail.HeadersMap(original)
	subject := headers["Subject"]
	if subject == "" {
		subject = gmail.NoSubject
	}
	replyTo := opts.To
	if replyTo == "" {
		replyTo = headers["Reply-To"]
	}
	if replyTo == "" {
		replyTo = headers["From"]
	}

	var headline string
	if send {
		sent, err := client.SendReply(ctx, messageID, opts)
		if err != nil {
			return toolError("Failed to send reply", err), nil
		}
		headline = "Reply sent successfully with ID: " + sent.Id
	} else {
		draft, err := client.CreateReplyDraft(ctx, messageID, opts)
		if err != nil {
			return toolError("Failed to create reply draft", err), nil
		}
		headline = "Reply draft created with ID: " + draft.Id
	}

	cc := opts.Cc
	if cc == "" {
		cc = "(none)"
	}
	return mcp.NewToolResultText(fmt.Sprintf("\n%s\nIn reply to: %s\nTo: %s\nCC: %s\nReply-All: %t\nAttachments: %d file(s)\nBody: %s\n",
		headline, subject, replyTo, cc, opts.ReplyAll, len(opts.Attachments), bodyPreview(body))), nil
}

func handleListDrafts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	maxResults, err := maxResultsArg(request, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	drafts, err := client.ListDrafts(ctx, maxResults)
	if err != nil {
		return toolError("Failed to list drafts", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d draft(s):\n", len(drafts))
	for _, d := range drafts {
		messageID := "N/A"
		if d.Message != nil && d.Message.Id != "" {
			messageID = d.Message.Id
		}
		fmt.Fprintf(&b, "  Draft ID: %s  Message ID: %s\n", d.Id, messageID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleGetDraft(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	draftID, err := request.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	draft, err := client.GetDraft(ctx, draftID)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to get draft %s", draftID), err), nil
	}

	result := "Draft ID: " + draftID + "\n"
	if draft.Message != nil {
		result += gmail.FormatMessage(draft.Message)
	} else {
		result += "No message in draft."
	}
	return mcp.NewToolResultText(result), nil
}

func handleSendDraft(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	draftID, err := request.RequireString("draft_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sent, err := client.SendDraft(ctx, draftID)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to send draft %s", draftID), err), nil
	}
	return mcp.NewToolResultText("Draft sent successfully. Message ID: " + sent.Id), nil
}
