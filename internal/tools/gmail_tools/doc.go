// Package gmail_tools provides MCP (Model Context Protocol) tools for interacting with Gmail.
//
// Every tool accepts an optional "account" argument selecting the mailbox
// from the token store; omitting it uses the default account.
//
// Reading:
//   - search_emails: structured search (sender, recipient, subject, dates, label, flags)
//   - query_emails: raw Gmail query syntax
//   - read_latest_emails: latest inbox messages with bodies
//   - get_emails: several messages by ID; failures are reported per message
//   - get_history, get_profile, list_accounts
//
// Writing:
//   - compose_email, send_email, reply_to_email
//   - list_drafts, get_draft, send_draft
//
// Labels and message state:
//   - list_available_labels, create_label, update_label, delete_label
//   - mark_message_read, add_label_to_message, remove_label_from_message, batch_modify_labels
//   - trash_message, untrash_message
//
// Attachments:
//   - list_attachments
//   - download_email_attachments: never overwrites, clashing names get a _N suffix
//
// Read-only mode registers only the tools that modify neither the mailbox
// nor the local disk.
package gmail_tools
