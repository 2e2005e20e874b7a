package gmail

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// DefaultUserID addresses the authenticated user.
const DefaultUserID = "me"

// Client wraps the Gmail Users service. Every call goes through an Invoker.
type Client struct {
	svc     *gmail.UsersService
	userID  string
	account string // The account this client is associated with
	inv     *Invoker
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithUserID sets the user id sent with every request. Defaults to "me".
func WithUserID(userID string) ClientOption {
	return func(c *Client) {
		if userID != "" {
			c.userID = userID
		}
	}
}

// WithAccount records the account key the client was built for.
func WithAccount(account string) ClientOption {
	return func(c *Client) { c.account = account }
}

// WithInvoker sets the retry policy used for API calls.
func WithInvoker(inv *Invoker) ClientOption {
	return func(c *Client) { c.inv = inv }
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewService builds a Gmail service authenticated by ts.
func NewService(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*gmail.Service, error) {
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// NewClient wraps svc.
func NewClient(svc *gmail.Service, opts ...ClientOption) *Client {
	c := &Client{
		svc:    svc.Users,
		userID: DefaultUserID,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.inv == nil {
		c.inv = NewInvoker(WithLogger(c.logger))
	}
	return c
}

// Account returns the account name this client is associated with
func (c *Client) Account() string {
	return c.account
}

// UserID returns the user id sent with requests.
func (c *Client) UserID() string {
	return c.userID
}

// Invoker returns the client's retry policy.
func (c *Client) Invoker() *Invoker {
	return c.inv
}

// GetProfile returns the authenticated user's mailbox profile.
func (c *Client) GetProfile(ctx context.Context) (*gmail.Profile, error) {
	return Do(ctx, c.inv, "users.getProfile", func(ctx context.Context) (*gmail.Profile, error) {
		return c.svc.GetProfile(c.userID).Context(ctx).Do()
	})
}

// SenderAddress resolves the address used as From on outgoing mail.
func (c *Client) SenderAddress(ctx context.Context) (string, error) {
	profile, err := c.GetProfile(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve sender address: %w", err)
	}
	return profile.EmailAddress, nil
}
