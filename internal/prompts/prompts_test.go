package prompts

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPrompts(t *testing.T) {
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithPromptCapabilities(false))
	require.NoError(t, RegisterPrompts(s))

	for _, name := range []string{
		"compose_email_prompt",
		"search_emails_prompt",
		"read_latest_emails_prompt",
		"download_attachments_prompt",
	} {
		t.Run(name, func(t *testing.T) {
			var g *guide
			for i := range guides {
				if guides[i].name == name {
					g = &guides[i]
				}
			}
			require.NotNil(t, g)

			result, err := g.handler(context.Background(), mcp.GetPromptRequest{})
			require.NoError(t, err)
			assert.Equal(t, g.description, result.Description)
			require.Len(t, result.Messages, 3)
			assert.Equal(t, mcp.RoleUser, result.Messages[0].Role)
			assert.Equal(t, mcp.RoleUser, result.Messages[1].Role)
			assert.Equal(t, mcp.RoleAssistant, result.Messages[2].Role)

			for _, m := range result.Messages {
				text, ok := mcp.AsTextContent(m.Content)
				require.True(t, ok)
				assert.NotEmpty(t, text.Text)
			}
		})
	}
}

func TestPromptsMentionRegisteredTools(t *testing.T) {
	tests := map[string][]string{
		"compose_email_prompt":        {"compose_email", "send_email", "reply_to_email"},
		"search_emails_prompt":        {"search_emails", "query_emails", "include_conversations"},
		"read_latest_emails_prompt":   {"read_latest_emails", "download_attachments_flag"},
		"download_attachments_prompt": {"list_attachments", "download_email_attachments", "download_all_in_thread"},
	}
	for _, g := range guides {
		for _, tool := range tests[g.name] {
			assert.Contains(t, g.system, tool, "prompt %s", g.name)
		}
	}
	assert.Len(t, guides, len(tests))
}
