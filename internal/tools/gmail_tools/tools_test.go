package gmail_tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmail_v1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/mcp-gmail/internal/config"
	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/google"
	"github.com/teemow/mcp-gmail/internal/server"
	"github.com/teemow/mcp-gmail/internal/tools/common"
)

const apiBase = "/gmail/v1/users/me"

// fakeGmail serves the parts of the Gmail REST API the tools call.
type fakeGmail struct {
	mu            sync.Mutex
	order         []string
	messages      map[string]*gmail_v1.Message
	threads       map[string][]string
	labels        []*gmail_v1.Label
	drafts        []*gmail_v1.Draft
	attachments   map[string]string
	history       *gmail_v1.ListHistoryResponse
	nextPageToken string

	queries     []string
	sent        []*gmail_v1.Message
	created     []*gmail_v1.Draft
	modified    map[string]*gmail_v1.ModifyMessageRequest
	batch       *gmail_v1.BatchModifyMessagesRequest
	trashed     []string
	untrashed   []string
	deleted     []string
	sentDrafts  []string
	labelWrites []*gmail_v1.Label
}

func newFakeGmail() *fakeGmail {
	return &fakeGmail{
		messages:    map[string]*gmail_v1.Message{},
		threads:     map[string][]string{},
		attachments: map[string]string{},
		modified:    map[string]*gmail_v1.ModifyMessageRequest{},
	}
}

func (f *fakeGmail) addMessage(msg *gmail_v1.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, msg.Id)
	f.messages[msg.Id] = msg
	f.threads[msg.ThreadId] = append(f.threads[msg.ThreadId], msg.Id)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
}

func decode[T any](t *testing.T, r *http.Request) *T {
	var v T
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&v))
	return &v
}

func (f *fakeGmail) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+apiBase+"/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &gmail_v1.Profile{EmailAddress: "me@example.com", MessagesTotal: 120, ThreadsTotal: 80, HistoryId: 4242})
	})
	mux.HandleFunc("GET "+apiBase+"/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		var refs []*gmail_v1.Message
		for _, id := range f.order {
			refs = append(refs, &gmail_v1.Message{Id: id, ThreadId: f.messages[id].ThreadId})
		}
		writeJSON(w, &gmail_v1.ListMessagesResponse{Messages: refs, NextPageToken: f.nextPageToken})
	})
	mux.HandleFunc("GET "+apiBase+"/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		msg, ok := f.messages[r.PathValue("id")]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, msg)
	})
	mux.HandleFunc("GET "+apiBase+"/messages/{id}/attachments/{att}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		data := f.attachments[r.PathValue("att")]
		writeJSON(w, &gmail_v1.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(data)), Size: int64(len(data))})
	})
	mux.HandleFunc("POST "+apiBase+"/messages/send", func(w http.ResponseWriter, r *http.Request) {
		msg := decode[gmail_v1.Message](t, r)
		f.mu.Lock()
		f.sent = append(f.sent, msg)
		f.mu.Unlock()
		writeJSON(w, &gmail_v1.Message{Id: "sent-1", ThreadId: msg.ThreadId})
	})
	mux.HandleFunc("POST "+apiBase+"/messages/batchModify", func(w http.ResponseWriter, r *http.Request) {
		req := decode[gmail_v1.BatchModifyMessagesRequest](t, r)
		f.mu.Lock()
		f.batch = req
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST "+apiBase+"/messages/{id}/modify", func(w http.ResponseWriter, r *http.Request) {
		req := decode[gmail_v1.ModifyMessageRequest](t, r)
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if _, ok := f.messages[id]; !ok {
			notFound(w)
			return
		}
		f.modified[id] = req
		writeJSON(w, &gmail_v1.Message{Id: id, LabelIds: req.AddLabelIds})
	})
	mux.HandleFunc("POST "+apiBase+"/messages/{id}/trash", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.trashed = append(f.trashed, r.PathValue("id"))
		writeJSON(w, &gmail_v1.Message{Id: r.PathValue("id")})
	})
	mux.HandleFunc("POST "+apiBase+"/messages/{id}/untrash", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.untrashed = append(f.untrashed, r.PathValue("id"))
		writeJSON(w, &gmail_v1.Message{Id: r.PathValue("id")})
	})
	mux.HandleFunc("GET "+apiBase+"/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		thread := &gmail_v1.Thread{Id: r.PathValue("id")}
		for _, id := range f.threads[r.PathValue("id")] {
			thread.Messages = append(thread.Messages, f.messages[id])
		}
		writeJSON(w, thread)
	})
	mux.HandleFunc("GET "+apiBase+"/labels", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, &gmail_v1.ListLabelsResponse{Labels: f.labels})
	})
	mux.HandleFunc("POST "+apiBase+"/labels", func(w http.ResponseWriter, r *http.Request) {
		label := decode[gmail_v1.Label](t, r)
		label.Id = "Label_99"
		f.mu.Lock()
		f.labelWrites = append(f.labelWrites, label)
		f.mu.Unlock()
		writeJSON(w, label)
	})
	mux.HandleFunc("GET "+apiBase+"/labels/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, l := range f.labels {
			if l.Id == r.PathValue("id") {
				writeJSON(w, l)
				return
			}
		}
		notFound(w)
	})
	mux.HandleFunc("PUT "+apiBase+"/labels/{id}", func(w http.ResponseWriter, r *http.Request) {
		label := decode[gmail_v1.Label](t, r)
		f.mu.Lock()
		f.labelWrites = append(f.labelWrites, label)
		f.mu.Unlock()
		writeJSON(w, label)
	})
	mux.HandleFunc("DELETE "+apiBase+"/labels/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET "+apiBase+"/drafts", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, &gmail_v1.ListDraftsResponse{Drafts: f.drafts})
	})
	mux.HandleFunc("POST "+apiBase+"/drafts", func(w http.ResponseWriter, r *http.Request) {
		draft := decode[gmail_v1.Draft](t, r)
		f.mu.Lock()
		f.created = append(f.created, draft)
		f.mu.Unlock()
		writeJSON(w, &gmail_v1.Draft{Id: "draft-1", Message: &gmail_v1.Message{Id: "draft-msg-1"}})
	})
	mux.HandleFunc("GET "+apiBase+"/drafts/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, d := range f.drafts {
			if d.Id == r.PathValue("id") {
				writeJSON(w, d)
				return
			}
		}
		notFound(w)
	})
	mux.HandleFunc("POST "+apiBase+"/drafts/send", func(w http.ResponseWriter, r *http.Request) {
		draft := decode[gmail_v1.Draft](t, r)
		f.mu.Lock()
		f.sentDrafts = append(f.sentDrafts, draft.Id)
		f.mu.Unlock()
		writeJSON(w, &gmail_v1.Message{Id: "sent-from-" + draft.Id})
	})
	mux.HandleFunc("GET "+apiBase+"/history", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		assert.Equal(t, "4000", r.URL.Query().Get("startHistoryId"))
		writeJSON(w, f.history)
	})

	return mux
}

func b64(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

func textMessage(id, threadID string, headers map[string]string, body string) *gmail_v1.Message {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	payload := &gmail_v1.MessagePart{MimeType: "text/plain", Body: &gmail_v1.MessagePartBody{Data: b64(body)}}
	for _, name := range names {
		payload.Headers = append(payload.Headers, &gmail_v1.MessagePartHeader{Name: name, Value: headers[name]})
	}
	return &gmail_v1.Message{Id: id, ThreadId: threadID, Payload: payload}
}

type testEnv struct {
	fake *fakeGmail
	s    *mcpserver.MCPServer
	sc   *server.ServerContext
}

func newTestEnv(t *testing.T, readOnly bool) *testEnv {
	t.Helper()
	fake := newFakeGmail()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	sc, err := server.NewServerContext(context.Background(), server.Options{
		Config: &config.Config{
			UserID:          "me",
			MaxResults:      10,
			AttachmentDir:   t.TempDir(),
			HandleCacheSize: 4,
		},
		Tokens: google.StaticTokenProvider{
			Token:    &oauth2.Token{AccessToken: "ya29.test"},
			Accounts: []string{"default", "work"},
		},
		ReadOnly:       readOnly,
		ServiceOptions: []option.ClientOption{option.WithEndpoint(srv.URL + "/"), option.WithHTTPClient(srv.Client())},
		InvokerOptions: []gmail.InvokerOption{
			gmail.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
			gmail.WithMaxTries(1),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterGmailTools(s, sc, readOnly))
	return &testEnv{fake: fake, s: s, sc: sc}
}

// call invokes a registered tool and returns its text and error flag.
func (e *testEnv) call(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	tool := e.s.GetTool(name)
	require.NotNil(t, tool, "tool %s is not registered", name)

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return common.ResultText(result), result.IsError
}

func toolNames(s *mcpserver.MCPServer) []string {
	var names []string
	for name := range s.ListTools() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestRegisterGmailTools(t *testing.T) {
	env := newTestEnv(t, false)

	assert.Equal(t, []string{
		"add_label_to_message",
		"batch_modify_labels",
		"compose_email",
		"create_label",
		"delete_label",
		"download_email_attachments",
		"get_draft",
		"get_emails",
		"get_history",
		"get_profile",
		"list_accounts",
		"list_attachments",
		"list_available_labels",
		"list_drafts",
		"mark_message_read",
		"query_emails",
		"read_latest_emails",
		"remove_label_from_message",
		"reply_to_email",
		"search_emails",
		"send_draft",
		"send_email",
		"trash_message",
		"untrash_message",
		"update_label",
	}, toolNames(env.s))

	for name, tool := range env.s.ListTools() {
		if name == "list_accounts" {
			continue
		}
		assert.Contains(t, tool.Tool.InputSchema.Properties, common.AccountArg, "tool %s", name)
	}
}

func TestRegisterGmailTools_ReadOnly(t *testing.T) {
	env := newTestEnv(t, true)

	assert.Equal(t, []string{
		"get_draft",
		"get_emails",
		"get_history",
		"get_profile",
		"list_accounts",
		"list_attachments",
		"list_available_labels",
		"list_drafts",
		"query_emails",
		"read_latest_emails",
		"search_emails",
	}, toolNames(env.s))
}

func TestBodyPreview(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "short", body: "hello", want: "hello"},
		{name: "exact length", body: strings.Repeat("a", EmailPreviewLength), want: strings.Repeat("a", EmailPreviewLength)},
		{name: "truncated", body: strings.Repeat("a", EmailPreviewLength+1), want: strings.Repeat("a", EmailPreviewLength) + "..."},
		{name: "multibyte", body: strings.Repeat("é", EmailPreviewLength+5), want: strings.Repeat("é", EmailPreviewLength) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bodyPreview(tt.body))
		})
	}
}

func TestMaxResultsArg(t *testing.T) {
	env := newTestEnv(t, false)

	_, isErr := env.call(t, "query_emails", map[string]any{"query": "in:inbox", "max_results": 0})
	assert.True(t, isErr)
}

func TestListAccounts(t *testing.T) {
	env := newTestEnv(t, false)

	text, isErr := env.call(t, "list_accounts", nil)
	require.False(t, isErr)
	assert.Equal(t, "Found 2 account(s):\n  - default\n  - work\n", text)
}

func TestToolReportsAccountInError(t *testing.T) {
	env := newTestEnv(t, false)
	require.NoError(t, env.sc.Shutdown())

	text, isErr := env.call(t, "get_profile", map[string]any{"account": "work"})
	assert.True(t, isErr)
	assert.Contains(t, text, "account work")
}
