package gmail

import (
	"context"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/mcp-gmail/internal/logging"
)

// Message projections accepted by GetMessage.
const (
	FormatFull     = "full"
	FormatMinimal  = "minimal"
	FormatMetadata = "metadata"
)

// Well-known system label ids.
const (
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
)

// ListMessages returns one page of message references matching query and
// the token of the next page, empty on the last page.
func (c *Client) ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) ([]*gmail.Message, string, error) {
	res, err := Do(ctx, c.inv, "messages.list", func(ctx context.Context) (*gmail.ListMessagesResponse, error) {
		call := c.svc.Messages.List(c.userID).Q(query).Context(ctx)
		if maxResults > 0 {
			call = call.MaxResults(maxResults)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	})
	if err != nil {
		return nil, "", err
	}
	return res.Messages, res.NextPageToken, nil
}

// SearchMessages lists messages matching criteria.
func (c *Client) SearchMessages(ctx context.Context, criteria SearchCriteria, maxResults int64, pageToken string) ([]*gmail.Message, string, error) {
	return c.ListMessages(ctx, criteria.BuildQuery(), maxResults, pageToken)
}

// GetMessage fetches a message. An empty format means full.
func (c *Client) GetMessage(ctx context.Context, messageID, format string) (*gmail.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id is required")
	}
	if format == "" {
		format = FormatFull
	}
	return Do(ctx, c.inv, "messages.get", func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Messages.Get(c.userID, messageID).Format(format).Context(ctx).Do()
	})
}

// SendMessage sends an already encoded message, optionally into a thread.
func (c *Client) SendMessage(ctx context.Context, raw, threadID string) (*gmail.Message, error) {
	msg := &gmail.Message{Raw: raw, ThreadId: threadID}
	return Do(ctx, c.inv, "messages.send", func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Messages.Send(c.userID, msg).Context(ctx).Do()
	})
}

// ModifyMessageLabels adds and removes label ids on one message.
func (c *Client) ModifyMessageLabels(ctx context.Context, messageID string, add, remove []string) (*gmail.Message, error) {
	req := &gmail.ModifyMessageRequest{AddLabelIds: add, RemoveLabelIds: remove}
	return Do(ctx, c.inv, "messages.modify", func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Messages.Modify(c.userID, messageID, req).Context(ctx).Do()
	})
}

// MarkAsRead removes the UNREAD label.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) (*gmail.Message, error) {
	return c.ModifyMessageLabels(ctx, messageID, nil, []string{LabelUnread})
}

// BatchModifyLabels adds and removes label ids on many messages at once.
func (c *Client) BatchModifyLabels(ctx context.Context, messageIDs, add, remove []string) error {
	if len(messageIDs) == 0 {
		return fmt.Errorf("at least one message id is required")
	}
	req := &gmail.BatchModifyMessagesRequest{Ids: messageIDs, AddLabelIds: add, RemoveLabelIds: remove}
	_, err := Do(ctx, c.inv, "messages.batchModify", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.svc.Messages.BatchModify(c.userID, req).Context(ctx).Do()
	})
	return err
}

// TrashMessage moves a message to the trash.
func (c *Client) TrashMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	return Do(ctx, c.inv, "messages.trash", func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Messages.Trash(c.userID, messageID).Context(ctx).Do()
	})
}

// UntrashMessage restores a message from the trash.
func (c *Client) UntrashMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	return Do(ctx, c.inv, "messages.untrash", func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Messages.Untrash(c.userID, messageID).Context(ctx).Do()
	})
}

// SendEmail assembles and sends msg. An empty From is filled from the profile.
func (c *Client) SendEmail(ctx context.Context, msg OutgoingMessage) (*gmail.Message, error) {
	raw, err := c.encode(ctx, &msg)
	if err != nil {
		return nil, err
	}
	sent, err := c.SendMessage(ctx, raw, "")
	if err != nil {
		return nil, err
	}
	c.logger.Info("sent email", logging.MessageID(sent.Id))
	return sent, nil
}

// CreateEmailDraft assembles msg and saves it as a draft.
func (c *Client) CreateEmailDraft(ctx context.Context, msg OutgoingMessage) (*gmail.Draft, error) {
	raw, err := c.encode(ctx, &msg)
	if err != nil {
		return nil, err
	}
	return c.CreateDraft(ctx, raw, "")
}

// SendReply replies to messageID in its thread.
func (c *Client) SendReply(ctx context.Context, messageID string, opts ReplyOptions) (*gmail.Message, error) {
	raw, threadID, err := c.prepareReply(ctx, messageID, opts)
	if err != nil {
		return nil, err
	}
	return c.SendMessage(ctx, raw, threadID)
}

// CreateReplyDraft saves a reply to messageID as a draft in its thread.
func (c *Client) CreateReplyDraft(ctx context.Context, messageID string, opts ReplyOptions) (*gmail.Draft, error) {
	raw, threadID, err := c.prepareReply(ctx, messageID, opts)
	if err != nil {
		return nil, err
	}
	return c.CreateDraft(ctx, raw, threadID)
}

func (c *Client) prepareReply(ctx context.Context, messageID string, opts ReplyOptions) (string, string, error) {
	original, err := c.GetMessage(ctx, messageID, FormatFull)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch original message: %w", err)
	}
	if opts.Sender == "" {
		sender, err := c.SenderAddress(ctx)
		if err != nil {
			return "", "", err
		}
		opts.Sender = sender
	}

	reply, threadID := PrepareReply(original, opts)
	raw, err := reply.Raw()
	if err != nil {
		return "", "", err
	}
	return raw, threadID, nil
}

func (c *Client) encode(ctx context.Context, msg *OutgoingMessage) (string, error) {
	if msg.From == "" {
		sender, err := c.SenderAddress(ctx)
		if err != nil {
			return "", err
		}
		msg.From = sender
	}
	return msg.Raw()
}
