package google

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenProvider is an interface for providing OAuth token sources for Gmail accounts.
// This abstraction lets the server and the CLI share one credential state machine
// while tests substitute static tokens.
type TokenProvider interface {
	// TokenSource returns a ready token source for the specified account.
	// An empty account means the account was not specified.
	TokenSource(ctx context.Context, account string) (oauth2.TokenSource, error)

	// HasToken checks if a token is stored for the specified account
	HasToken(account string) bool

	// ListAccounts returns the keys of all stored accounts.
	ListAccounts() ([]string, error)
}

var _ TokenProvider = (*Authenticator)(nil)

// StaticTokenProvider serves a fixed token for every account.
type StaticTokenProvider struct {
	Token    *oauth2.Token
	Accounts []string
}

// TokenSource implements TokenProvider.
func (p StaticTokenProvider) TokenSource(context.Context, string) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(p.Token), nil
}

// HasToken implements TokenProvider.
func (p StaticTokenProvider) HasToken(string) bool {
	return p.Token != nil
}

// ListAccounts implements TokenProvider.
func (p StaticTokenProvider) ListAccounts() ([]string, error) {
	return p.Accounts, nil
}
