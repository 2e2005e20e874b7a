package gmail

import (
	"context"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
)

// Label visibility values used when creating user labels.
const (
	LabelListShow   = "labelShow"
	MessageListShow = "show"
	LabelTypeUser   = "user"
)

// ListLabels returns all labels of the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	res, err := Do(ctx, c.inv, "labels.list", func(ctx context.Context) (*gmail.ListLabelsResponse, error) {
		return c.svc.Labels.List(c.userID).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return res.Labels, nil
}

// GetLabel fetches one label.
func (c *Client) GetLabel(ctx context.Context, labelID string) (*gmail.Label, error) {
	return Do(ctx, c.inv, "labels.get", func(ctx context.Context) (*gmail.Label, error) {
		return c.svc.Labels.Get(c.userID, labelID).Context(ctx).Do()
	})
}

// CreateLabel creates a visible user label.
func (c *Client) CreateLabel(ctx context.Context, name string) (*gmail.Label, error) {
	if name == "" {
		return nil, fmt.Errorf("label name is required")
	}
	label := &gmail.Label{
		Name:                  name,
		LabelListVisibility:   LabelListShow,
		MessageListVisibility: MessageListShow,
		Type:                  LabelTypeUser,
	}
	return Do(ctx, c.inv, "labels.create", func(ctx context.Context) (*gmail.Label, error) {
		return c.svc.Labels.Create(c.userID, label).Context(ctx).Do()
	})
}

// LabelUpdate lists the label fields to change. Empty fields are kept.
type LabelUpdate struct {
	Name                  string
	LabelListVisibility   string
	MessageListVisibility string
}

// UpdateLabel reads the label, applies the non-empty fields of u and writes
// it back.
func (c *Client) UpdateLabel(ctx context.Context, labelID string, u LabelUpdate) (*gmail.Label, error) {
	label, err := c.GetLabel(ctx, labelID)
	if err != nil {
		return nil, err
	}
	if u.Name != "" {
		label.Name = u.Name
	}
	if u.LabelListVisibility != "" {
		label.LabelListVisibility = u.LabelListVisibility
	}
	if u.MessageListVisibility != "" {
		label.MessageListVisibility = u.MessageListVisibility
	}
	return Do(ctx, c.inv, "labels.update", func(ctx context.Context) (*gmail.Label, error) {
		return c.svc.Labels.Update(c.userID, labelID, label).Context(ctx).Do()
	})
}

// DeleteLabel deletes a user label.
func (c *Client) DeleteLabel(ctx context.Context, labelID string) error {
	_, err := Do(ctx, c.inv, "labels.delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.svc.Labels.Delete(c.userID, labelID).Context(ctx).Do()
	})
	return err
}

// LabelName returns the display name of labelID, or labelID itself when the
// label cannot be found in labels.
func LabelName(labels []*gmail.Label, labelID string) string {
	for _, l := range labels {
		if l.Id == labelID {
			return l.Name
		}
	}
	return labelID
}
