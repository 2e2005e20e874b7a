package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"
)

// Attribute keys shared by the server, the invoker and the audit records.
const (
	KeyOperation  = "operation"
	KeyAccount    = "account"
	KeyDuration   = "duration"
	KeyStatus     = "status"
	KeyError      = "error"
	KeyTool       = "tool"
	KeyMessageID  = "message_id"
	KeyAttempt    = "attempt"
	KeyRecipients = "recipients"
)

// WithTool returns a logger that tags every record with the tool name.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(Tool(tool))
}

// WithAccount returns a logger that tags every record with the account.
// The default account is logged as "default", never as an empty string.
func WithAccount(logger *slog.Logger, account string) *slog.Logger {
	return logger.With(Account(account))
}

// Operation is the Gmail API call, e.g. messages.list.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

func Account(account string) slog.Attr {
	if account == "" {
		account = "default"
	}
	return slog.String(KeyAccount, account)
}

func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}

// Attempt is the 1-based attempt number of a retried call.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d)
}

func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns the error attribute. A nil error yields an empty group, which
// handlers drop, so Err(maybeNil) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// Recipients returns the recipient list of an outgoing message. Without
// includePII only the distinct domains are kept.
func Recipients(addrs []string, includePII bool) slog.Attr {
	out := make([]string, 0, len(addrs))
	seen := make(map[string]bool, len(addrs))
	for _, addr := range addrs {
		v := addr
		if !includePII {
			v = ExtractDomain(addr)
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return slog.Any(KeyRecipients, out)
}

// Anonymize returns a stable short hash of value, so that records about the
// same mailbox or account can be correlated without exposing it.
func Anonymize(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return "anon:" + hex.EncodeToString(sum[:8])
}

// ExtractDomain returns the lower-cased domain of an address such as
// "Jane <jane@Example.com>", or "" when there is none.
func ExtractDomain(addr string) string {
	addr = strings.TrimSuffix(strings.TrimSpace(addr), ">")
	i := strings.LastIndex(addr, "@")
	if i < 0 || i == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[i+1:])
}
