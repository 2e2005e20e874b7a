package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/mcp-gmail/internal/config"
	"github.com/teemow/mcp-gmail/internal/gmail"
)

// fakeTokens hands out static tokens and counts TokenSource calls per account.
type fakeTokens struct {
	mu       sync.Mutex
	calls    map[string]int
	err      error
	accounts []string
	listErr  error
}

func (f *fakeTokens) TokenSource(_ context.Context, account string) (oauth2.TokenSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[account]++
	if f.err != nil {
		return nil, f.err
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29." + account}), nil
}

func (f *fakeTokens) HasToken(string) bool { return f.err == nil }

func (f *fakeTokens) ListAccounts() ([]string, error) { return f.accounts, f.listErr }

func (f *fakeTokens) callsFor(account string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[account]
}

func testConfig(cacheSize int) *config.Config {
	return &config.Config{
		CredentialsPath: "credentials.json",
		TokenPath:       "token.json",
		UserID:          "me",
		MaxResults:      10,
		HandleCacheSize: cacheSize,
		CircuitBreaker:  true,
		LogLevel:        "info",
	}
}

func newTestServerContext(t *testing.T, tokens *fakeTokens, cacheSize int, opts ...option.ClientOption) *ServerContext {
	t.Helper()
	sc, err := NewServerContext(context.Background(), Options{
		Config:         testConfig(cacheSize),
		Tokens:         tokens,
		ServiceOptions: opts,
		InvokerOptions: []gmail.InvokerOption{
			gmail.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func profileServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/profile", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"emailAddress":  "alice@example.com",
			"messagesTotal": 42,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewServerContext_RequiresDependencies(t *testing.T) {
	_, err := NewServerContext(context.Background(), Options{Tokens: &fakeTokens{}})
	assert.Error(t, err)

	_, err = NewServerContext(context.Background(), Options{Config: testConfig(1)})
	assert.Error(t, err)
}

func TestGmailClientForAccount_CachesPerAccount(t *testing.T) {
	srv := profileServer(t)
	tokens := &fakeTokens{}
	sc := newTestServerContext(t, tokens, 4,
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	ctx := context.Background()

	work, err := sc.GmailClientForAccount(ctx, "work")
	require.NoError(t, err)
	again, err := sc.GmailClientForAccount(ctx, "work")
	require.NoError(t, err)
	personal, err := sc.GmailClientForAccount(ctx, "personal")
	require.NoError(t, err)

	assert.Same(t, work, again)
	assert.NotSame(t, work, personal)
	assert.Equal(t, "work", work.Account())
	assert.Equal(t, 1, tokens.callsFor("work"))
	assert.Equal(t, 2, sc.HandleCount())

	profile, err := work.GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", profile.EmailAddress)
}

func TestGmailClientForAccount_EmptyAndDefaultShareClient(t *testing.T) {
	tokens := &fakeTokens{}
	sc := newTestServerContext(t, tokens, 4)
	ctx := context.Background()

	unnamed, err := sc.GmailClientForAccount(ctx, "")
	require.NoError(t, err)
	named, err := sc.GmailClientForAccount(ctx, "default")
	require.NoError(t, err)

	assert.Same(t, unnamed, named)
	assert.Equal(t, 1, tokens.callsFor(""))
	assert.Equal(t, 0, tokens.callsFor("default"))
	assert.Equal(t, 1, sc.HandleCount())
	assert.Equal(t, map[string]string{"default": "closed"}, sc.BreakerStates())
}

func TestGmailClientForAccount_EvictsLeastRecentlyUsed(t *testing.T) {
	tokens := &fakeTokens{}
	sc := newTestServerContext(t, tokens, 1)
	ctx := context.Background()

	_, err := sc.GmailClientForAccount(ctx, "work")
	require.NoError(t, err)
	_, err = sc.GmailClientForAccount(ctx, "personal")
	require.NoError(t, err)
	assert.Equal(t, 1, sc.HandleCount())

	_, err = sc.GmailClientForAccount(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, 2, tokens.callsFor("work"))
}

func TestGmailClientForAccount_TokenError(t *testing.T) {
	expired := errors.New("authorization expired")
	sc := newTestServerContext(t, &fakeTokens{err: expired}, 2)

	_, err := sc.GmailClientForAccount(context.Background(), "work")
	assert.ErrorIs(t, err, expired)
	assert.Zero(t, sc.HandleCount())
}

func TestGmailClientForAccount_AfterShutdown(t *testing.T) {
	sc := newTestServerContext(t, &fakeTokens{}, 2)
	_, err := sc.GmailClientForAccount(context.Background(), "work")
	require.NoError(t, err)

	require.NoError(t, sc.Shutdown())
	require.NoError(t, sc.Shutdown())

	assert.True(t, sc.IsShutdown())
	assert.Zero(t, sc.HandleCount())
	assert.Error(t, sc.Context().Err())

	_, err = sc.GmailClientForAccount(context.Background(), "work")
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestServerContext_ListAccounts(t *testing.T) {
	sc := newTestServerContext(t, &fakeTokens{accounts: []string{"work", "default"}}, 2)
	accounts, err := sc.ListAccounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"work", "default"}, accounts)
}
