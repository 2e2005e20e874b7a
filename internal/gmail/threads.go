package gmail

import (
	"context"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
)

// GetThread retrieves a full Gmail thread with all its messages
func (c *Client) GetThread(ctx context.Context, threadID string) (*gmail.Thread, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}
	return Do(ctx, c.inv, "threads.get", func(ctx context.Context) (*gmail.Thread, error) {
		return c.svc.Threads.Get(c.userID, threadID).Format(FormatFull).Context(ctx).Do()
	})
}

// ThreadSize returns the number of messages in a thread using the minimal
// projection.
func (c *Client) ThreadSize(ctx context.Context, threadID string) (int, error) {
	t, err := Do(ctx, c.inv, "threads.get", func(ctx context.Context) (*gmail.Thread, error) {
		return c.svc.Threads.Get(c.userID, threadID).Format(FormatMinimal).Context(ctx).Do()
	})
	if err != nil {
		return 0, err
	}
	return len(t.Messages), nil
}

// GetHistory lists mailbox changes since startHistoryID. It returns the
// history records, the mailbox's current history id and the next page token.
func (c *Client) GetHistory(ctx context.Context, startHistoryID uint64, maxResults int64, pageToken string) ([]*gmail.History, uint64, string, error) {
	res, err := Do(ctx, c.inv, "history.list", func(ctx context.Context) (*gmail.ListHistoryResponse, error) {
		call := c.svc.History.List(c.userID).StartHistoryId(startHistoryID).Context(ctx)
		if maxResults > 0 {
			call = call.MaxResults(maxResults)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	})
	if err != nil {
		return nil, 0, "", err
	}
	return res.History, res.HistoryId, res.NextPageToken, nil
}
