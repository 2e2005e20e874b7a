// Package logging provides structured logging utilities for mcp-gmail.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Logger construction from level and format settings, always writing to stderr
//   - Consistent attribute naming (operation, account, message_id, duration)
//   - PII reduction: hashed account names, recipient domains instead of addresses
//
// # Usage Patterns
//
// Build the process logger once at startup:
//
//	logger, err := logging.New(logging.Options{Level: "debug", Format: "json"})
//
// Attach standard attributes:
//
//	logger := logging.WithAccount(slog.Default(), "work")
//	logger.Info("sent email",
//	    logging.MessageID(msg.Id),
//	    logging.Duration(time.Since(start)))
//
// Reduce personal data before logging:
//
//	logger.Info("sent email",
//	    logging.Account(logging.Anonymize(account)),
//	    logging.Recipients(to, false))
//
// # Security Considerations
//
//   - Account names are hashed unless AUDIT_LOGGING_INCLUDE_PII is set
//   - Tokens, message bodies and search queries are never logged
package logging
