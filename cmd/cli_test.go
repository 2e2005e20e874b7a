package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmail_v1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/tokenstore"
)

const apiBase = "/gmail/v1/users/me"

type mailbox struct {
	messages map[string]*gmail_v1.Message
	order    []string
	sent     []*gmail_v1.Message
	queries  []string
	limits   []string
	auth     []string
}

func (m *mailbox) add(id string, headers map[string]string, body string) {
	msg := &gmail_v1.Message{
		Id:       id,
		ThreadId: "t-" + id,
		Payload: &gmail_v1.MessagePart{
			MimeType: "text/plain",
			Body:     &gmail_v1.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
		},
	}
	for name, value := range headers {
		msg.Payload.Headers = append(msg.Payload.Headers, &gmail_v1.MessagePartHeader{Name: name, Value: value})
	}
	m.messages[id] = msg
	m.order = append(m.order, id)
}

// setupCLI points the configuration at a temporary token store and the
// Gmail client at a local fake.
func setupCLI(t *testing.T) (*mailbox, string) {
	t.Helper()
	box := &mailbox{messages: map[string]*gmail_v1.Message{}}

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+apiBase+"/messages", func(w http.ResponseWriter, r *http.Request) {
		box.queries = append(box.queries, r.URL.Query().Get("q"))
		box.limits = append(box.limits, r.URL.Query().Get("maxResults"))
		box.auth = append(box.auth, r.Header.Get("Authorization"))
		resp := &gmail_v1.ListMessagesResponse{NextPageToken: "next-1"}
		for _, id := range box.order {
			resp.Messages = append(resp.Messages, &gmail_v1.Message{Id: id})
		}
		writeJSON(w, resp)
	})
	mux.HandleFunc("GET "+apiBase+"/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		msg, ok := box.messages[r.PathValue("id")]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
			return
		}
		writeJSON(w, msg)
	})
	mux.HandleFunc("GET "+apiBase+"/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &gmail_v1.Profile{EmailAddress: "me@example.com"})
	})
	mux.HandleFunc("POST "+apiBase+"/messages/send", func(w http.ResponseWriter, r *http.Request) {
		var msg gmail_v1.Message
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		box.sent = append(box.sent, &msg)
		writeJSON(w, &gmail_v1.Message{Id: "sent-1"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("MCP_GMAIL_TOKEN_PATH", filepath.Join(dir, "token.json"))
	t.Setenv("MCP_GMAIL_CREDENTIALS_PATH", filepath.Join(dir, "credentials.json"))
	t.Setenv("MCP_GMAIL_MULTI_ACCOUNT_SINGLE_FILE", "false")
	t.Setenv("MCP_GMAIL_CIRCUIT_BREAKER", "false")
	t.Setenv("MCP_GMAIL_LOG_LEVEL", "error")

	serviceOptions = []option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithHTTPClient(srv.Client()),
	}
	invokerOptions = []gmail.InvokerOption{
		gmail.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		gmail.WithMaxTries(1),
	}
	t.Cleanup(func() {
		serviceOptions = nil
		invokerOptions = nil
		authorizer = nil
	})
	return box, dir
}

func writeLegacyToken(t *testing.T, path, token string) {
	t.Helper()
	data := `{"token":"` + token + `","refresh_token":"1//refresh","client_id":"cid","client_secret":"secret"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestSearchCommand(t *testing.T) {
	box, dir := setupCLI(t)
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.cli")
	box.add("m1", map[string]string{"From": "Alice <alice@example.com>", "Subject": "Hello"}, "hi")
	box.add("m2", map[string]string{"From": "bob@example.com"}, "no subject")

	stdout, stderr, err := runCLI(t, "search", "-q", "is:unread", "-n", "5", "--show-next-token")
	require.NoError(t, err)

	assert.Equal(t, "id:m1\tfrom:Alice <alice@example.com>\tsubject:Hello\n"+
		"id:m2\tfrom:bob@example.com\tsubject:\n", stdout)
	assert.Equal(t, "next_page_token: next-1\n", stderr)
	assert.Equal(t, []string{"is:unread"}, box.queries)
	assert.Equal(t, []string{"5"}, box.limits)
	assert.Equal(t, []string{"Bearer ya29.cli"}, box.auth)
}

func TestSearchCommand_MaxDefaultsToConfiguration(t *testing.T) {
	box, dir := setupCLI(t)
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.cli")
	t.Setenv("MCP_GMAIL_MAX_RESULTS", "3")

	_, _, err := runCLI(t, "search")
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, box.limits)

	_, _, err = runCLI(t, "search", "--max=-1")
	assert.Error(t, err)
	assert.Len(t, box.limits, 1)
}

func TestSearchCommand_HidesNextTokenByDefault(t *testing.T) {
	box, dir := setupCLI(t)
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.cli")
	box.add("m1", map[string]string{"Subject": "Hello"}, "hi")

	_, stderr, err := runCLI(t, "search")
	require.NoError(t, err)
	assert.Empty(t, stderr)
}

func TestSearchCommand_AccountFile(t *testing.T) {
	box, dir := setupCLI(t)
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.default")
	writeLegacyToken(t, filepath.Join(dir, "token_work.json"), "ya29.work")

	_, _, err := runCLI(t, "search", "--account", "work")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer ya29.work"}, box.auth)
}

func TestSearchCommand_UnknownAccountInSharedFile(t *testing.T) {
	_, dir := setupCLI(t)
	t.Setenv("MCP_GMAIL_MULTI_ACCOUNT_SINGLE_FILE", "true")
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.default")

	_, _, err := runCLI(t, "search", "-a", "work")
	require.Error(t, err)
	assert.True(t, tokenstore.IsUnknownAccount(err), err.Error())
}

func TestGetCommand(t *testing.T) {
	box, dir := setupCLI(t)
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.cli")
	box.add("m1", map[string]string{
		"From":    "Alice <alice@example.com>",
		"To":      "me@example.com",
		"Subject": "Hello",
		"Date":    "Mon, 1 Jan 2024 10:00:00 +0000",
	}, "Body text")

	stdout, _, err := runCLI(t, "get", "m1")
	require.NoError(t, err)
	assert.Equal(t, "From: Alice <alice@example.com>\nTo: me@example.com\nSubject: Hello\n"+
		"Date: Mon, 1 Jan 2024 10:00:00 +0000\n\nBody text\n", stdout)
}

func TestGetCommand_Errors(t *testing.T) {
	_, dir := setupCLI(t)
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.cli")

	_, _, err := runCLI(t, "get", "missing")
	require.Error(t, err)
	assert.Equal(t, 404, gmail.StatusCode(err))

	_, _, err = runCLI(t, "get")
	assert.Error(t, err)
}

func TestSendCommand(t *testing.T) {
	box, dir := setupCLI(t)
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.cli")
	bodyFile := filepath.Join(dir, "body.txt")
	require.NoError(t, os.WriteFile(bodyFile, []byte("From the file"), 0o600))

	stdout, stderr, err := runCLI(t, "send", "-t", "bob@example.com", "-s", "Hi", "-b", "ignored",
		"--body-file", bodyFile, "--cc", "carol@example.com")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Equal(t, "sent\n", stderr)

	require.Len(t, box.sent, 1)
	raw, err := base64.URLEncoding.DecodeString(box.sent[0].Raw)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "me@example.com")
	assert.Contains(t, string(raw), "carol@example.com")
	assert.Contains(t, string(raw), "From the file")
	assert.NotContains(t, string(raw), "ignored")
}

func TestSendCommand_EmptyBody(t *testing.T) {
	box, dir := setupCLI(t)
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.cli")

	_, stderr, err := runCLI(t, "send", "-t", "bob@example.com", "-s", "Ping")
	require.NoError(t, err)
	assert.Equal(t, "sent\n", stderr)

	require.Len(t, box.sent, 1)
	raw, err := base64.URLEncoding.DecodeString(box.sent[0].Raw)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Ping")
}

func TestSendCommand_Validation(t *testing.T) {
	box, dir := setupCLI(t)
	writeLegacyToken(t, filepath.Join(dir, "token.json"), "ya29.cli")

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing to", args: []string{"send", "-s", "Hi", "-b", "x"}},
		{name: "missing subject", args: []string{"send", "-t", "bob@example.com", "-b", "x"}},
		{name: "unreadable body file", args: []string{"send", "-t", "bob@example.com", "-s", "Hi", "--body-file", filepath.Join(dir, "nope.txt")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, box.sent)
}

type fakeAuthorizer struct {
	token *oauth2.Token
	calls int
}

func (f *fakeAuthorizer) Authorize(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	f.calls++
	return f.token, nil
}

func writeCredentials(t *testing.T, path string) {
	t.Helper()
	data := `{"installed":{"client_id":"cid.apps.googleusercontent.com","client_secret":"secret",` +
		`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
		`"redirect_uris":["http://localhost"]}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestAuthAndAccountsCommands(t *testing.T) {
	_, dir := setupCLI(t)
	writeCredentials(t, filepath.Join(dir, "credentials.json"))
	fake := &fakeAuthorizer{token: &oauth2.Token{
		AccessToken:  "ya29.new",
		RefreshToken: "1//new",
		Expiry:       time.Now().Add(time.Hour),
	}}
	authorizer = fake

	stdout, _, err := runCLI(t, "accounts")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	_, stderr, err := runCLI(t, "auth", "--account", "work")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.Contains(t, stderr, "authorized account work ("+filepath.Join(dir, "token_work.json")+")")

	rec, found, err := tokenstore.New(filepath.Join(dir, "token_work.json")).Resolve("")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ya29.new", rec.Token)
	assert.Equal(t, "cid.apps.googleusercontent.com", rec.ClientID)

	_, _, err = runCLI(t, "auth")
	require.NoError(t, err)

	stdout, _, err = runCLI(t, "accounts")
	require.NoError(t, err)
	assert.Equal(t, "default\nwork\n", stdout)
}

func TestAuthCommand_MissingCredentials(t *testing.T) {
	setupCLI(t)
	authorizer = &fakeAuthorizer{token: &oauth2.Token{AccessToken: "x"}}

	_, _, err := runCLI(t, "auth")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OAuth application credentials not found")
}

func TestInvalidConfiguration(t *testing.T) {
	setupCLI(t)
	t.Setenv("MCP_GMAIL_MAX_RESULTS", "0")

	_, _, err := runCLI(t, "accounts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_results must be positive")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mcp-gmail version "+version+"\n", stdout)
}
