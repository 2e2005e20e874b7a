package instrumentation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/mcp-gmail/internal/logging"
)

// ToolInvocation is the audit record of one MCP tool call against a mailbox.
type ToolInvocation struct {
	Tool string

	// Account is the token store key the call ran against. Empty means the
	// default account.
	Account string

	// Mutating is set for tools that send, draft, label or trash mail.
	Mutating bool

	// Targets lists the message, thread, draft or label ids the call touched.
	Targets []string

	// Recipients lists the addresses mail was sent or drafted to.
	Recipients []string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewToolInvocation starts timing a call to tool.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithAccount sets the account key.
func (ti *ToolInvocation) WithAccount(account string) *ToolInvocation {
	ti.Account = account
	return ti
}

// WithMutating marks the call as changing mailbox state.
func (ti *ToolInvocation) WithMutating(mutating bool) *ToolInvocation {
	ti.Mutating = mutating
	return ti
}

// WithTargets appends the non-empty ids the call touched.
func (ti *ToolInvocation) WithTargets(ids ...string) *ToolInvocation {
	for _, id := range ids {
		if id != "" {
			ti.Targets = append(ti.Targets, id)
		}
	}
	return ti
}

// WithRecipients appends recipient addresses.
func (ti *ToolInvocation) WithRecipients(addrs ...string) *ToolInvocation {
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			ti.Recipients = append(ti.Recipients, a)
		}
	}
	return ti
}

// WithSpanContext copies the trace id of the span in ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = TraceID(ctx)
	return ti
}

// Complete stops the clock and records the outcome.
func (ti *ToolInvocation) Complete(err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = err == nil
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns "success" or "error".
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// accountName is the account as shown in logs and metrics.
func (ti *ToolInvocation) accountName() string {
	if ti.Account == "" {
		return "default"
	}
	return ti.Account
}

// LogAttrs returns the audit attributes. Without includePII the account
// name is hashed and recipients are reduced to their domains.
func (ti *ToolInvocation) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		logging.Tool(ti.Tool),
		slog.Bool("mutating", ti.Mutating),
		logging.Duration(ti.Duration),
		logging.Status(ti.Status()),
	}

	if includePII {
		attrs = append(attrs, logging.Account(ti.accountName()))
	} else {
		attrs = append(attrs, logging.Account(logging.Anonymize(ti.accountName())))
	}

	if len(ti.Targets) > 0 {
		attrs = append(attrs, slog.Any("targets", ti.Targets))
	}
	if len(ti.Recipients) > 0 {
		attrs = append(attrs, logging.Recipients(ti.Recipients, includePII))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, ti.Error))
	}
	return attrs
}

// AuditLogger writes one structured record per tool invocation.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger. A nil logger means slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With(slog.String("component", "audit")),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation records ti. Failures and mutating calls are logged at
// warn and info, reads at debug.
func (al *AuditLogger) LogToolInvocation(ctx context.Context, ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	level := slog.LevelDebug
	msg := "tool_executed"
	switch {
	case !ti.Success:
		level = slog.LevelWarn
		msg = "tool_failed"
	case ti.Mutating:
		level = slog.LevelInfo
	}
	al.logger.LogAttrs(ctx, level, msg, ti.LogAttrs(al.includePII)...)
}
