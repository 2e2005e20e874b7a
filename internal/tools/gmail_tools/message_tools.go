package gmail_tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	gmail_v1 "google.golang.org/api/gmail/v1"

	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/server"
	"github.com/teemow/mcp-gmail/internal/tools/batch"
	"github.com/teemow/mcp-gmail/internal/tools/common"
)

const inboxQuery = "in:inbox"

// RegisterMessageTools registers the tools that search and read messages.
func RegisterMessageTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	searchEmailsTool := mcp.NewTool("search_emails",
		mcp.WithDescription("Search for emails using specific search criteria. Includes next_page_token when more results are available."),
		mcp.WithString("from_email", mcp.Description("Filter by sender email")),
		mcp.WithString("to_email", mcp.Description("Filter by recipient email")),
		mcp.WithString("subject", mcp.Description("Filter by subject text")),
		mcp.WithBoolean("has_attachment", mcp.Description("Filter for emails with attachments")),
		mcp.WithBoolean("is_unread", mcp.Description("Filter for unread emails")),
		mcp.WithBoolean("is_starred", mcp.Description("Filter for starred emails")),
		mcp.WithBoolean("is_important", mcp.Description("Filter for emails marked important")),
		mcp.WithBoolean("in_trash", mcp.Description("Search the trash")),
		mcp.WithString("after_date", mcp.Description("Filter for emails after this date (format: YYYY/MM/DD)")),
		mcp.WithString("before_date", mcp.Description("Filter for emails before this date (format: YYYY/MM/DD)")),
		mcp.WithString("label", mcp.Description("Filter by Gmail label")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of results to return (default: 10)"), mcp.Min(1)),
		mcp.WithString("page_token", mcp.Description("Token for the next page; omit for the first page")),
		mcp.WithBoolean("include_conversations", mcp.Description("Report how many other messages share each result's thread")),
		common.WithAccount(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	addTool(s, sc, readOnly, false, searchEmailsTool, handleSearchEmails)

	queryEmailsTool := mcp.NewTool("query_emails",
		mcp.WithDescription("Search for emails using a raw Gmail query string (same syntax as the Gmail search box)"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Gmail search query, e.g. 'from:alice@example.com is:unread'")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of results to return (default: 10)"), mcp.Min(1)),
		mcp.WithString("page_token", mcp.Description("Token for the next page; omit for the first page")),
		common.WithAccount(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	addTool(s, sc, readOnly, false, queryEmailsTool, handleQueryEmails)

	readLatestTool := mcp.NewTool("read_latest_emails",
		mcp.WithDescription("Read the latest emails from the inbox, optionally downloading their attachments"),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of emails to return (default: 10)"), mcp.Min(1)),
		mcp.WithBoolean("download_attachments_flag", mcp.Description("Download attachments to target_dir")),
		mcp.WithString("target_dir", mcp.Description("Directory to save attachments (default: downloaded_attachments)")),
		common.WithAccount(),
	)
	addTool(s, sc, readOnly, false, readLatestTool, handleReadLatestEmails)

	getEmailsTool := mcp.NewTool("get_emails",
		mcp.WithDescription("Get the content of multiple email messages by their IDs. Messages that cannot be retrieved are reported separately."),
		mcp.WithArray("message_ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Gmail message IDs")),
		common.WithAccount(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	addTool(s, sc, readOnly, false, getEmailsTool, handleGetEmails)

	getHistoryTool := mcp.NewTool("get_history",
		mcp.WithDescription("List mailbox changes (messages added or deleted, labels changed) since a history ID"),
		mcp.WithString("start_history_id", mcp.Required(), mcp.Description("History ID to start from, e.g. from get_profile")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of history records (default: 10)"), mcp.Min(1)),
		mcp.WithString("page_token", mcp.Description("Token for the next page; omit for the first page")),
		common.WithAccount(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	addTool(s, sc, readOnly, false, getHistoryTool, handleGetHistory)

	getProfileTool := mcp.NewTool("get_profile",
		mcp.WithDescription("Get the mailbox profile: address, message and thread totals and the current history ID"),
		common.WithAccount(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	addTool(s, sc, readOnly, false, getProfileTool, handleGetProfile)

	return nil
}

func handleSearchEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	criteria := gmail.SearchCriteria{
		From:          request.GetString("from_email", ""),
		To:            request.GetString("to_email", ""),
		Subject:       request.GetString("subject", ""),
		HasAttachment: request.GetBool("has_attachment", false),
		IsUnread:      request.GetBool("is_unread", false),
		IsStarred:     request.GetBool("is_starred", false),
		IsImportant:   request.GetBool("is_important", false),
		InTrash:       request.GetBool("in_trash", false),
		After:         request.GetString("after_date", ""),
		Before:        request.GetString("before_date", ""),
	}
	if label := request.GetString("label", ""); label != "" {
		criteria.Labels = []string{label}
	}

	if criteria.After != "" && gmail.ValidateDate(criteria.After) != nil {
		return mcp.NewToolResultErrorf("Error: after_date '%s' is not in the required format YYYY/MM/DD", criteria.After), nil
	}
	if criteria.Before != "" && gmail.ValidateDate(criteria.Before) != nil {
		return mcp.NewToolResultErrorf("Error: before_date '%s' is not in the required format YYYY/MM/DD", criteria.Before), nil
	}

	maxResults, err := maxResultsArg(request, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	refs, nextPageToken, err := client.SearchMessages(ctx, criteria, maxResults, request.GetString("page_token", ""))
	if err != nil {
		return toolError("Failed to search messages", err), nil
	}
	summaries, err := fetchSummaries(ctx, client, messageIDs(refs))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	includeConversations := request.GetBool("include_conversations", false)

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d messages matching criteria:\n", len(summaries))
	writeNextPageToken(&b, nextPageToken)
	for _, m := range summaries {
		fmt.Fprintf(&b, "\nMessage ID: %s\nThread ID: %s\nFrom: %s\nSubject: %s\nDate: %s\n", m.ID, m.ThreadID, m.From, m.Subject, m.Date)
		if !includeConversations || m.ThreadID == "" {
			continue
		}
		size, err := client.ThreadSize(ctx, m.ThreadID)
		if err != nil {
			return toolError(fmt.Sprintf("Failed to get thread %s", m.ThreadID), err), nil
		}
		if others := size - 1; others > 0 {
			fmt.Fprintf(&b, "  Thread has %d other message(s). Read gmail://threads/%s for the full thread.\n", others, m.ThreadID)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleQueryEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxResults, err := maxResultsArg(request, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	refs, nextPageToken, err := client.ListMessages(ctx, query, maxResults, request.GetString("page_token", ""))
	if err != nil {
		return toolError("Failed to query messages", err), nil
	}
	summaries, err := fetchSummaries(ctx, client, messageIDs(refs))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d messages matching query: \"%s\"\n", len(summaries), query)
	writeNextPageToken(&b, nextPageToken)
	for _, m := range summaries {
		fmt.Fprintf(&b, "\nMessage ID: %s\nFrom: %s\nSubject: %s\nDate: %s\n", m.ID, m.From, m.Subject, m.Date)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleReadLatestEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	maxResults, err := maxResultsArg(request, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	download := request.GetBool("download_attachments_flag", false)
	if download && sc.ReadOnly() {
		return mcp.NewToolResultError("attachment downloads are disabled in read-only mode"), nil
	}
	dir := request.GetString("target_dir", "")
	if dir == "" {
		dir = sc.Config().AttachmentDir
	}

	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	refs, _, err := client.ListMessages(ctx, inboxQuery, maxResults, "")
	if err != nil {
		return toolError("Failed to list inbox", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Latest %d inbox messages:\n", len(refs))
	for _, ref := range refs {
		msg, err := client.GetMessage(ctx, ref.Id, gmail.FormatFull)
		if err != nil {
			return toolError(fmt.Sprintf("Failed to get message %s", ref.Id), err), nil
		}
		fmt.Fprintf(&b, "\n--- Message ID: %s ---\n", ref.Id)
		b.WriteString(gmail.FormatMessage(msg))

		if !download || len(gmail.ListAttachments(msg)) == 0 {
			continue
		}
		saved, err := client.DownloadAttachments(ctx, ref.Id, dir, false)
		if err != nil {
			return toolError(fmt.Sprintf("Failed to download attachments of %s", ref.Id), err), nil
		}
		fmt.Fprintf(&b, "  Attachments downloaded (%d file(s)) to: %s\n", len(saved), dir)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleGetEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	raw := request.GetArguments()["message_ids"]
	if isEmptyList(raw) {
		return mcp.NewToolResultText("No message IDs provided."), nil
	}
	ids, err := batch.ParseStringOrArray(raw, "message_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := batch.Process(ctx, ids, batch.DefaultConcurrency, func(ctx context.Context, id string) (*gmail_v1.Message, error) {
		return client.GetMessage(ctx, id, gmail.FormatFull)
	})
	retrieved, failed := batch.Partition(results)

	var b strings.Builder
	fmt.Fprintf(&b, "Retrieved %d emails:\n", len(retrieved))
	for i, r := range retrieved {
		fmt.Fprintf(&b, "\n--- Email %d (ID: %s) ---\n", i+1, r.ID)
		b.WriteString(gmail.FormatMessage(r.Value))
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\n\nFailed to retrieve %d emails:\n", len(failed))
		for i, r := range failed {
			fmt.Fprintf(&b, "\n--- Email %d (ID: %s) ---\nError: %v\n", i+1, r.ID, r.Err)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleGetHistory(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	startArg, err := request.RequireString("start_history_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, err := strconv.ParseUint(strings.TrimSpace(startArg), 10, 64)
	if err != nil {
		return mcp.NewToolResultErrorf("start_history_id %q is not a valid history ID", startArg), nil
	}
	maxResults, err := maxResultsArg(request, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	records, current, nextPageToken, err := client.GetHistory(ctx, start, maxResults, request.GetString("page_token", ""))
	if err != nil {
		return toolError("Failed to list history", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d history record(s) since %d (current history ID: %d):\n", len(records), start, current)
	writeNextPageToken(&b, nextPageToken)
	for _, h := range records {
		fmt.Fprintf(&b, "\nHistory ID: %d\n", h.Id)
		writeHistoryLine(&b, "Messages added", addedIDs(h.MessagesAdded))
		writeHistoryLine(&b, "Messages deleted", deletedIDs(h.MessagesDeleted))
		writeHistoryLine(&b, "Labels added", labelChanges(h.LabelsAdded))
		writeHistoryLine(&b, "Labels removed", labelRemovals(h.LabelsRemoved))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleGetProfile(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	profile, err := client.GetProfile(ctx)
	if err != nil {
		return toolError("Failed to get profile", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Email: %s\nMessages total: %d\nThreads total: %d\nHistory ID: %d\n",
		profile.EmailAddress, profile.MessagesTotal, profile.ThreadsTotal, profile.HistoryId)), nil
}

func messageIDs(refs []*gmail_v1.Message) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.Id)
	}
	return ids
}

// isEmptyList reports whether a list argument is missing or has no items.
func isEmptyList(v any) bool {
	switch list := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(list) == ""
	case []any:
		return len(list) == 0
	case []string:
		return len(list) == 0
	}
	return false
}

func writeHistoryLine(b *strings.Builder, title string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(b, "  %s: %s\n", title, strings.Join(items, ", "))
	}
}

func addedIDs(added []*gmail_v1.HistoryMessageAdded) []string {
	var ids []string
	for _, a := range added {
		if a.Message != nil {
			ids = append(ids, a.Message.Id)
		}
	}
	return ids
}

func deletedIDs(deleted []*gmail_v1.HistoryMessageDeleted) []string {
	var ids []string
	for _, d := range deleted {
		if d.Message != nil {
			ids = append(ids, d.Message.Id)
		}
	}
	return ids
}

func labelChanges(changes []*gmail_v1.HistoryLabelAdded) []string {
	var out []string
	for _, c := range changes {
		if c.Message != nil {
			out = append(out, fmt.Sprintf("%s (+%s)", c.Message.Id, strings.Join(c.LabelIds, ", +")))
		}
	}
	return out
}

func labelRemovals(changes []*gmail_v1.HistoryLabelRemoved) []string {
	var out []string
	for _, c := range changes {
		if c.Message != nil {
			out = append(out, fmt.Sprintf("%s (-%s)", c.Message.Id, strings.Join(c.LabelIds, ", -")))
		}
	}
	return out
}
