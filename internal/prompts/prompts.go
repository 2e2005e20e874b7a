package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// guide is a canned conversation: instructions for the agent, the user's
// opening line and the assistant's first reply.
type guide struct {
	name        string
	description string
	system      string
	user        string
	assistant   string
}

var guides = []guide{
	{
		name:        "compose_email_prompt",
		description: "Guide for composing and sending an email, or replying to one (with optional attachments)",
		system: "You're helping the user compose/send an email or reply to one. " +
			"For new emails: use compose_email (draft) or send_email (send); both accept attachment_paths. " +
			"For replies: use reply_to_email with message_id and body; set send=true to send immediately or false for a draft; attachment_paths and html_body are optional. " +
			"Collect: account (optional), recipient or message_id, subject/body, CC/BCC, attachment file paths.",
		user: "I need to send an email.",
		assistant: "I'll help. Is this a new email or a reply? " +
			"For new: recipient, subject, body, and optionally CC/BCC and attachment file paths. " +
			"For reply: the message ID to reply to, reply body, and optionally attachment_paths. " +
			"Say send=true to send now or I'll create a draft.",
	},
	{
		name:        "search_emails_prompt",
		description: "Guide for searching emails",
		system: "You're helping the user search their emails. " +
			"Use search_emails for criteria (from, to, subject, dates, label, unread, has_attachment) or query_emails for a raw Gmail query. " +
			"Optionally set include_conversations=true to see thread context.",
		user: "I want to search my emails.",
		assistant: "I can search by: sender (from_email), recipient (to_email), subject, date range (after_date/before_date YYYY/MM/DD), label, unread, or has attachment. " +
			"Or give me a raw Gmail query (e.g. from:user@example.com is:unread). Which account (optional)?",
	},
	{
		name:        "read_latest_emails_prompt",
		description: "Guide for reading latest emails",
		system: "You're helping the user read their recent emails. " +
			"Use read_latest_emails with max_results; set download_attachments_flag=true to save attachments to a directory.",
		user: "I want to check my recent emails.",
		assistant: "I'll fetch your latest inbox messages. How many would you like (default 10)? " +
			"Should I download any attachments to a folder (e.g. downloaded_attachments)? Which account (optional)?",
	},
	{
		name:        "download_attachments_prompt",
		description: "Guide for downloading email attachments",
		system: "You're helping the user download attachments. " +
			"Use list_attachments to see what's on a message, then download_email_attachments with the message_id. " +
			"Set download_all_in_thread=true to get attachments from the whole thread.",
		user: "I want to download attachments from an email.",
		assistant: "I'll help you download attachments. Please provide the Message ID (from search or get_emails). " +
			"Should I download from that message only or the entire conversation thread? " +
			"Optional: target directory (default downloaded_attachments) and account.",
	},
}

// RegisterPrompts registers the workflow guides.
func RegisterPrompts(s *mcpserver.MCPServer) error {
	for _, g := range guides {
		prompt := mcp.NewPrompt(g.name, mcp.WithPromptDescription(g.description))
		s.AddPrompt(prompt, g.handler)
	}
	return nil
}

// handler renders the guide. MCP prompts have no system role, so the agent
// instructions are sent as the first user message.
func (g guide) handler(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return mcp.NewGetPromptResult(g.description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(g.system)),
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(g.user)),
		mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(g.assistant)),
	}), nil
}
