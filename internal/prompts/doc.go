// Package prompts provides MCP prompts that guide an agent through common
// Gmail workflows: composing or replying, searching, reading the inbox and
// downloading attachments.
package prompts
