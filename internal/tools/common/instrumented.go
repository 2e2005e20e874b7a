package common

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mcp-gmail/internal/gmail"
	"github.com/teemow/mcp-gmail/internal/instrumentation"
	"github.com/teemow/mcp-gmail/internal/logging"
	"github.com/teemow/mcp-gmail/internal/server"
)

// Argument names inspected for audit targets and recipients.
var (
	targetArgs    = []string{"message_id", "thread_id", "draft_id", "label_id"}
	targetArrays  = []string{"message_ids"}
	recipientArgs = []string{"to", "cc", "bcc"}
)

// InstrumentedToolHandler wraps a tool handler with a tool span, invocation
// metrics and an audit record. A result with IsError set counts as a failure.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("send_email", true, sc, handler))
func InstrumentedToolHandler(toolName string, mutating bool, sc *server.ServerContext, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		account := GetAccountFromArgs(args)

		ctx, span := instrumentation.StartToolSpan(ctx, instrumentation.ToolSpan{
			Tool:      toolName,
			Account:   AccountDisplayName(account),
			MessageID: stringArg(args, "message_id"),
			ThreadID:  stringArg(args, "thread_id"),
			ReadOnly:  sc.ReadOnly(),
			Mutating:  mutating,
		})

		invocation := instrumentation.NewToolInvocation(toolName).
			WithAccount(account).
			WithMutating(mutating).
			WithSpanContext(ctx).
			WithTargets(targets(args)...).
			WithRecipients(recipients(args)...)

		result, err := handler(ctx, request)

		failure := err
		if failure == nil && result != nil && result.IsError {
			failure = errors.New(ResultText(result))
		}
		invocation.Complete(failure)
		instrumentation.EndSpan(span, failure)

		sc.Metrics().RecordToolInvocationWithAccount(ctx, toolName, invocation.Status(), AccountDisplayName(account), invocation.Duration)
		sc.Audit().LogToolInvocation(ctx, invocation)

		return result, err
	}
}

// LoggingMiddleware logs every tool call at debug level and failures at warn.
func LoggingMiddleware(logger *slog.Logger) mcpserver.ToolHandlerMiddleware {
	return func(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
		return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			log := logging.WithTool(logger, request.Params.Name)
			log.Debug("tool called", logging.Account(AccountDisplayName(GetAccountFromArgs(request.GetArguments()))))

			result, err := next(ctx, request)
			switch {
			case err != nil:
				log.Warn("tool returned error", logging.Err(err))
			case result != nil && result.IsError:
				log.Warn("tool failed", slog.String("result", ResultText(result)))
			}
			return result, err
		}
	}
}

// ResultText joins the text content of result.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func targets(args map[string]any) []string {
	var ids []string
	for _, key := range targetArgs {
		if v := stringArg(args, key); v != "" {
			ids = append(ids, v)
		}
	}
	for _, key := range targetArrays {
		if list, ok := args[key].([]any); ok {
			for _, item := range list {
				if s, ok := item.(string); ok {
					ids = append(ids, s)
				}
			}
		}
	}
	return ids
}

func recipients(args map[string]any) []string {
	var addrs []string
	for _, key := range recipientArgs {
		addrs = append(addrs, gmail.SplitAddresses(stringArg(args, key))...)
	}
	return addrs
}
