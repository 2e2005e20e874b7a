package gmail_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	gmail_v1 "google.golang.org/api/gmail/v1"

	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/server"
	"github.com/teemow/mcp-gmail/internal/tools/batch"
	"github.com/teemow/mcp-gmail/internal/tools/common"
)

// RegisterLabelTools registers label management and message state tools.
func RegisterLabelTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listLabelsTool := mcp.NewTool("list_available_labels",
		mcp.WithDescription("Get all available Gmail labels with their IDs"),
		common.WithAccount(),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	addTool(s, sc, readOnly, false, listLabelsTool, handleListLabels)

	markReadTool := mcp.NewTool("mark_message_read",
		mcp.WithDescription("Mark a message as read by removing the UNREAD label"),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("The Gmail message ID to mark as read")),
		common.WithAccount(),
		mcp.WithIdempotentHintAnnotation(true),
	)
	addTool(s, sc, readOnly, true, markReadTool, handleMarkMessageRead)

	addLabelTool := mcp.NewTool("add_label_to_message",
		mcp.WithDescription("Add a label to a message"),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("The Gmail message ID")),
		mcp.WithString("label_id", mcp.Required(), mcp.Description("The label ID to add (use list_available_labels to find label IDs)")),
		common.WithAccount(),
		mcp.WithIdempotentHintAnnotation(true),
	)
	addTool(s, sc, readOnly, true, addLabelTool, handleAddLabel)

	removeLabelTool := mcp.NewTool("remove_label_from_message",
		mcp.WithDescription("Remove a label from a message"),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("The Gmail message ID")),
		mcp.WithString("label_id", mcp.Required(), mcp.Description("The label ID to remove (use list_available_labels to find label IDs)")),
		common.WithAccount(),
		mcp.WithIdempotentHintAnnotation(true),
	)
	addTool(s, sc, readOnly, true, removeLabelTool, handleRemoveLabel)

	batchModifyTool := mcp.NewTool("batch_modify_labels",
		mcp.WithDescription("Add or remove labels on multiple messages at once"),
		mcp.WithArray("message_ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Gmail message IDs")),
		mcp.WithArray("add_labels", mcp.WithStringItems(), mcp.Description("Label IDs to add")),
		mcp.WithArray("remove_labels", mcp.WithStringItems(), mcp.Description("Label IDs to remove")),
		common.WithAccount(),
		mcp.WithIdempotentHintAnnotation(true),
	)
	addTool(s, sc, readOnly, true, batchModifyTool, handleBatchModifyLabels)

	trashTool := mcp.NewTool("trash_message",
		mcp.WithDescription("Move a message to the trash"),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("The Gmail message ID")),
		common.WithAccount(),
		mcp.WithDestructiveHintAnnotation(true),
	)
	addTool(s, sc, readOnly, true, trashTool, handleTrashMessage)

	untrashTool := mcp.NewTool("untrash_message",
		mcp.WithDescription("Restore a message from the trash"),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("The Gmail message ID")),
		common.WithAccount(),
	)
	addTool(s, sc, readOnly, true, untrashTool, handleUntrashMessage)

	createLabelTool := mcp.NewTool("create_label",
		mcp.WithDescription("Create a new Gmail label"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Label name")),
		common.WithAccount(),
	)
	addTool(s, sc, readOnly, true, createLabelTool, handleCreateLabel)

	updateLabelTool := mcp.NewTool("update_label",
		mcp.WithDescription("Update an existing label's name or visibility"),
		mcp.WithString("label_id", mcp.Required(), mcp.Description("The label ID to update")),
		mcp.WithString("name", mcp.Description("New label name")),
		mcp.WithString("label_list_visibility",
			mcp.Enum("labelShow", "labelHide", "labelShowIfUnread"),
			mcp.Description("Visibility in the label list"),
		),
		mcp.WithString("message_list_visibility",
			mcp.Enum("show", "hide"),
			mcp.Description("Visibility in the message list"),
		),
		common.WithAccount(),
		mcp.WithIdempotentHintAnnotation(true),
	)
	addTool(s, sc, readOnly, true, updateLabelTool, handleUpdateLabel)

	deleteLabelTool := mcp.NewTool("delete_label",
		mcp.WithDescription("Delete a Gmail label"),
		mcp.WithString("label_id", mcp.Required(), mcp.Description("The label ID to delete")),
		common.WithAccount(),
		mcp.WithDestructiveHintAnnotation(true),
	)
	addTool(s, sc, readOnly, true, deleteLabelTool, handleDeleteLabel)

	return nil
}

func handleListLabels(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	labels, err := client.ListLabels(ctx)
	if err != nil {
		return toolError("Failed to list labels", err), nil
	}

	var b strings.Builder
	b.WriteString("Available Gmail Labels:\n")
	for _, l := range labels {
		labelType := l.Type
		if labelType == "" {
			labelType = gmail.LabelTypeUser
		}
		fmt.Fprintf(&b, "\nLabel ID: %s\nName: %s\nType: %s\n", l.Id, l.Name, labelType)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// messageSubject returns the subject of a modify response, which usually
// carries no payload.
func messageSubject(msg *gmail_v1.Message) string {
	if s := gmail.HeaderValue(msg, "Subject"); s != "" {
		return s
	}
	return gmail.NoSubject
}

func handleMarkMessageRead(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	messageID, err := request.RequireString("message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	msg, err := client.MarkAsRead(ctx, messageID)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to mark message %s as read", messageID), err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("\nMessage marked as read:\nID: %s\nSubject: %s\n", messageID, messageSubject(msg))), nil
}

func handleAddLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	return modifyOneLabel(ctx, request, sc, true)
}

func handleRemoveLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	return modifyOneLabel(ctx, request, sc, false)
}

func modifyOneLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, add bool) (*mcp.CallToolResult, error) {
	messageID, err := request.RequireString("message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	labelID, err := request.RequireString("label_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	labels, err := client.ListLabels(ctx)
	if err != nil {
		return toolError("Failed to list labels", err), nil
	}

	var addIDs, removeIDs []string
	headline, verb := "Label removed from message:", "Removed Label"
	if add {
		addIDs = []string{labelID}
		headline, verb = "Label added to message:", "Added Label"
	} else {
		removeIDs = []string{labelID}
	}
	msg, err := client.ModifyMessageLabels(ctx, messageID, addIDs, removeIDs)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to modify labels of message %s", messageID), err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("\n%s\nID: %s\nSubject: %s\n%s: %s (%s)\n",
		headline, messageID, messageSubject(msg), verb, gmail.LabelName(labels, labelID), labelID)), nil
}

func handleBatchModifyLabels(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	ids, err := batch.ParseStringOrArray(request.GetArguments()["message_ids"], "message_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	add := request.GetStringSlice("add_labels", nil)
	remove := request.GetStringSlice("remove_labels", nil)
	if len(add) == 0 && len(remove) == 0 {
		return mcp.NewToolResultError("at least one of add_labels or remove_labels is required"), nil
	}

	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := client.BatchModifyLabels(ctx, ids, add, remove); err != nil {
		return toolError("Failed to modify labels", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Labels updated on %d message(s).", len(ids))), nil
}

func handleTrashMessage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	messageID, err := request.RequireString("message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := client.TrashMessage(ctx, messageID); err != nil {
		return toolError(fmt.Sprintf("Failed to trash message %s", messageID), err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Message %s moved to trash.", messageID)), nil
}

func handleUntrashMessage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	messageID, err := request.RequireString("message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := client.UntrashMessage(ctx, messageID); err != nil {
		return toolError(fmt.Sprintf("Failed to restore message %s", messageID), err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Message %s restored from trash.", messageID)), nil
}

func handleCreateLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	label, err := client.CreateLabel(ctx, name)
	if err != nil {
		return toolError("Failed to create label", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Label created: %s (ID: %s)", label.Name, label.Id)), nil
}

func handleUpdateLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	labelID, err := request.RequireString("label_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	update := gmail.LabelUpdate{
		Name:                  request.GetString("name", ""),
		LabelListVisibility:   request.GetString("label_list_visibility", ""),
		MessageListVisibility: request.GetString("message_list_visibility", ""),
	}
	if update == (gmail.LabelUpdate{}) {
		return mcp.NewToolResultError("nothing to update: set name, label_list_visibility or message_list_visibility"), nil
	}

	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := client.UpdateLabel(ctx, labelID, update); err != nil {
		return toolError(fmt.Sprintf("Failed to update label %s", labelID), err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Label %s updated.", labelID)), nil
}

func handleDeleteLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	labelID, err := request.RequireString("label_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	client, err := common.GmailClient(ctx, sc, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := client.DeleteLabel(ctx, labelID); err != nil {
		return toolError(fmt.Sprintf("Failed to delete label %s", labelID), err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Label %s deleted.", labelID)), nil
}
