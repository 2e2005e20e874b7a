package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/server"
)

const (
	mimeTextPlain = "text/plain"
	mimeJSON      = "application/json"
	inboxQuery    = "in:inbox"
)

// RegisterGmailResources registers the message, thread, inbox and profile
// resources.
func RegisterGmailResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	messageTemplate := mcp.NewResourceTemplate(
		"gmail://messages/{message_id}",
		"Email Message",
		mcp.WithTemplateDescription("A single email with its From, To, Subject and Date headers and decoded body"),
		mcp.WithTemplateMIMEType(mimeTextPlain),
	)
	s.AddResourceTemplate(messageTemplate, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleMessage(ctx, request, sc)
	})

	threadTemplate := mcp.NewResourceTemplate(
		"gmail://threads/{thread_id}",
		"Email Thread",
		mcp.WithTemplateDescription("All messages of an email thread in order"),
		mcp.WithTemplateMIMEType(mimeTextPlain),
	)
	s.AddResourceTemplate(threadTemplate, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleThread(ctx, request, sc)
	})

	inboxResource := mcp.NewResource(
		"gmail://inbox",
		"Inbox",
		mcp.WithResourceDescription("The latest inbox messages of the default account"),
		mcp.WithMIMEType(mimeTextPlain),
	)
	s.AddResource(inboxResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleInbox(ctx, request, sc, "")
	})

	accountInboxTemplate := mcp.NewResourceTemplate(
		"gmail://inbox/{account}",
		"Account Inbox",
		mcp.WithTemplateDescription("The latest inbox messages of a named account"),
		mcp.WithTemplateMIMEType(mimeTextPlain),
	)
	s.AddResourceTemplate(accountInboxTemplate, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		account, err := templateArg(request, "account")
		if err != nil {
			return nil, err
		}
		return handleInbox(ctx, request, sc, account)
	})

	profileResource := mcp.NewResource(
		"gmail://profile",
		"Mailbox Profile",
		mcp.WithResourceDescription("Address, totals and current history ID of the default account"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleProfile(ctx, request, sc)
	})

	return nil
}

// templateArg returns a variable matched from the resource URI template.
func templateArg(request mcp.ReadResourceRequest, name string) (string, error) {
	var value string
	switch v := request.Params.Arguments[name].(type) {
	case string:
		value = v
	case []string:
		if len(v) > 0 {
			value = v[0]
		}
	}
	if value == "" {
		return "", fmt.Errorf("%s is missing from resource URI %s", name, request.Params.URI)
	}
	return value, nil
}

func textContents(request mcp.ReadResourceRequest, mimeType, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: mimeType,
			Text:     text,
		},
	}
}

func handleMessage(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	messageID, err := templateArg(request, "message_id")
	if err != nil {
		return nil, err
	}
	client, err := sc.GmailClientForAccount(ctx, "")
	if err != nil {
		return nil, err
	}

	msg, err := client.GetMessage(ctx, messageID, gmail.FormatFull)
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return textContents(request, mimeTextPlain, gmail.FormatMessage(msg)), nil
}

func handleThread(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	threadID, err := templateArg(request, "thread_id")
	if err != nil {
		return nil, err
	}
	client, err := sc.GmailClientForAccount(ctx, "")
	if err != nil {
		return nil, err
	}

	thread, err := client.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Email Thread (ID: %s)\n", threadID)
	for i, msg := range thread.Messages {
		fmt.Fprintf(&b, "\n--- Message %d ---\n", i+1)
		b.WriteString(gmail.FormatMessage(msg))
	}
	return textContents(request, mimeTextPlain, b.String()), nil
}

func handleInbox(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext, account string) ([]mcp.ResourceContents, error) {
	client, err := sc.GmailClientForAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	refs, nextPageToken, err := client.ListMessages(ctx, inboxQuery, sc.Config().MaxResults, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}

	var b strings.Builder
	if account == "" {
		fmt.Fprintf(&b, "Inbox (latest %d messages):\n", len(refs))
	} else {
		fmt.Fprintf(&b, "Inbox for account '%s' (latest %d messages):\n", account, len(refs))
	}
	if nextPageToken != "" {
		fmt.Fprintf(&b, "next_page_token: %s\n", nextPageToken)
	}
	for _, ref := range refs {
		msg, err := client.GetMessage(ctx, ref.Id, gmail.FormatMetadata)
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", ref.Id, err)
		}
		s := gmail.Summarize(msg)
		date := gmail.HeaderValue(msg, "Date")
		if date == "" {
			date = gmail.UnknownValue
		}
		fmt.Fprintf(&b, "\nMessage ID: %s\nFrom: %s\nSubject: %s\nDate: %s\n", ref.Id, s.From, s.Subject, date)
	}
	return textContents(request, mimeTextPlain, b.String()), nil
}

func handleProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	client, err := sc.GmailClientForAccount(ctx, "")
	if err != nil {
		return nil, err
	}

	profile, err := client.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	profileData := map[string]any{
		"email":         profile.EmailAddress,
		"historyId":     profile.HistoryId,
		"messagesTotal": profile.MessagesTotal,
		"threadsTotal":  profile.ThreadsTotal,
	}
	jsonData, err := json.MarshalIndent(profileData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}
	return textContents(request, mimeJSON, string(jsonData)), nil
}
