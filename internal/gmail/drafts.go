package gmail

import (
	"context"

	gmail "google.golang.org/api/gmail/v1"
)

// CreateDraft saves an encoded message as a draft, optionally in a thread.
func (c *Client) CreateDraft(ctx context.Context, raw, threadID string) (*gmail.Draft, error) {
	draft := &gmail.Draft{Message: &gmail.Message{Raw: raw, ThreadId: threadID}}
	return Do(ctx, c.inv, "drafts.create", func(ctx context.Context) (*gmail.Draft, error) {
		return c.svc.Drafts.Create(c.userID, draft).Context(ctx).Do()
	})
}

// ListDrafts returns up to maxResults drafts.
func (c *Client) ListDrafts(ctx context.Context, maxResults int64) ([]*gmail.Draft, error) {
	res, err := Do(ctx, c.inv, "drafts.list", func(ctx context.Context) (*gmail.ListDraftsResponse, error) {
		call := c.svc.Drafts.List(c.userID).Context(ctx)
		if maxResults > 0 {
			call = call.MaxResults(maxResults)
		}
		return call.Do()
	})
	if err != nil {
		return nil, err
	}
	return res.Drafts, nil
}

// GetDraft fetches a draft with its full message.
func (c *Client) GetDraft(ctx context.Context, draftID string) (*gmail.Draft, error) {
	return Do(ctx, c.inv, "drafts.get", func(ctx context.Context) (*gmail.Draft, error) {
		return c.svc.Drafts.Get(c.userID, draftID).Format(FormatFull).Context(ctx).Do()
	})
}

// SendDraft sends an existing draft and returns the sent message.
func (c *Client) SendDraft(ctx context.Context, draftID string) (*gmail.Message, error) {
	return Do(ctx, c.inv, "drafts.send", func(ctx context.Context) (*gmail.Message, error) {
		return c.svc.Drafts.Send(c.userID, &gmail.Draft{Id: draftID}).Context(ctx).Do()
	})
}
