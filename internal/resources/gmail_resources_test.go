package resources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmail_v1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mcp-gmail/internal/config"
	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/server"
)

const apiBase = "/gmail/v1/users/me"

func message(id, threadID, from, subject, date, body string) *gmail_v1.Message {
	headers := []*gmail_v1.MessagePartHeader{
		{Name: "From", Value: from},
		{Name: "To", Value: "me@example.com"},
		{Name: "Subject", Value: subject},
	}
	if date != "" {
		headers = append(headers, &gmail_v1.MessagePartHeader{Name: "Date", Value: date})
	}
	return &gmail_v1.Message{
		Id:       id,
		ThreadId: threadID,
		Payload: &gmail_v1.MessagePart{
			MimeType: "text/plain",
			Headers:  headers,
			Body:     &gmail_v1.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
		},
	}
}

type fixture struct {
	s       *mcpserver.MCPServer
	queries []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	messages := map[string]*gmail_v1.Message{
		"m1": message("m1", "t1", "Alice <alice@example.com>", "Hello", "Tue, 2 Jan 2024 09:00:00 +0000", "First"),
		"m2": message("m2", "t1", "me@example.com", "Re: Hello", "", "Second"),
	}

	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("GET "+apiBase+"/messages", func(w http.ResponseWriter, r *http.Request) {
		f.queries = append(f.queries, r.URL.Query().Get("q")+" max="+r.URL.Query().Get("maxResults"))
		writeJSON(w, &gmail_v1.ListMessagesResponse{
			Messages:      []*gmail_v1.Message{{Id: "m1"}, {Id: "m2"}},
			NextPageToken: "more",
		})
	})
	mux.HandleFunc("GET "+apiBase+"/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		msg, ok := messages[r.PathValue("id")]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
			return
		}
		writeJSON(w, msg)
	})
	mux.HandleFunc("GET "+apiBase+"/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &gmail_v1.Thread{Id: r.PathValue("id"), Messages: []*gmail_v1.Message{messages["m1"], messages["m2"]}})
	})
	mux.HandleFunc("GET "+apiBase+"/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &gmail_v1.Profile{EmailAddress: "me@example.com", MessagesTotal: 7, ThreadsTotal: 3, HistoryId: 11})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sc, err := server.NewServerContext(context.Background(), server.Options{
		Config: &config.Config{UserID: "me", MaxResults: 5, HandleCacheSize: 4},
		Tokens: staticTokens{},
		ServiceOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
		InvokerOptions: []gmail.InvokerOption{
			gmail.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
			gmail.WithMaxTries(1),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	f.s = mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithResourceCapabilities(false, false))
	require.NoError(t, RegisterGmailResources(f.s, sc))
	return f
}

type staticTokens struct{}

func (staticTokens) TokenSource(context.Context, string) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ya29.test"}), nil
}
func (staticTokens) HasToken(string) bool            { return true }
func (staticTokens) ListAccounts() ([]string, error) { return nil, nil }

type readResult struct {
	Result struct {
		Contents []struct {
			URI      string `json:"uri"`
			MIMEType string `json:"mimeType"`
			Text     string `json:"text"`
		} `json:"contents"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (f *fixture) read(t *testing.T, uri string) readResult {
	t.Helper()
	req := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":%q}}`, uri)
	resp := f.s.HandleMessage(context.Background(), json.RawMessage(req))

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var out readResult
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func (f *fixture) readText(t *testing.T, uri string) string {
	t.Helper()
	out := f.read(t, uri)
	require.Nil(t, out.Error, "reading %s", uri)
	require.Len(t, out.Result.Contents, 1)
	assert.Equal(t, uri, out.Result.Contents[0].URI)
	return out.Result.Contents[0].Text
}

func TestMessageResource(t *testing.T) {
	f := newFixture(t)

	text := f.readText(t, "gmail://messages/m1")
	assert.Equal(t, "\nFrom: Alice <alice@example.com>\nTo: me@example.com\nSubject: Hello\nDate: Tue, 2 Jan 2024 09:00:00 +0000\n\nFirst\n", text)
}

func TestMessageResource_NotFound(t *testing.T) {
	f := newFixture(t)

	out := f.read(t, "gmail://messages/missing")
	require.NotNil(t, out.Error)
	assert.Contains(t, out.Error.Message, "missing")
}

func TestThreadResource(t *testing.T) {
	f := newFixture(t)

	text := f.readText(t, "gmail://threads/t1")
	assert.Contains(t, text, "Email Thread (ID: t1)\n")
	assert.Contains(t, text, "\n--- Message 1 ---\n\nFrom: Alice <alice@example.com>\n")
	assert.Contains(t, text, "\n--- Message 2 ---\n\nFrom: me@example.com\n")
	assert.Contains(t, text, "Date: Unknown Date\n\nSecond\n")
}

func TestInboxResources(t *testing.T) {
	f := newFixture(t)

	text := f.readText(t, "gmail://inbox")
	assert.Equal(t, "Inbox (latest 2 messages):\nnext_page_token: more\n"+
		"\nMessage ID: m1\nFrom: Alice <alice@example.com>\nSubject: Hello\nDate: Tue, 2 Jan 2024 09:00:00 +0000\n"+
		"\nMessage ID: m2\nFrom: me@example.com\nSubject: Re: Hello\nDate: Unknown\n", text)

	text = f.readText(t, "gmail://inbox/work")
	assert.Contains(t, text, "Inbox for account 'work' (latest 2 messages):\n")

	assert.Equal(t, []string{"in:inbox max=5", "in:inbox max=5"}, f.queries)
}

func TestProfileResource(t *testing.T) {
	f := newFixture(t)

	out := f.read(t, "gmail://profile")
	require.Nil(t, out.Error)
	require.Len(t, out.Result.Contents, 1)
	assert.Equal(t, "application/json", out.Result.Contents[0].MIMEType)

	var profile map[string]any
	require.NoError(t, json.Unmarshal([]byte(out.Result.Contents[0].Text), &profile))
	assert.Equal(t, "me@example.com", profile["email"])
	assert.Equal(t, float64(7), profile["messagesTotal"])
}
