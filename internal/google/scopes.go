package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultScopes are requested when no scopes are configured. Modify is
// required to add or remove labels on messages.
var DefaultScopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailModifyScope,
	gmail.GmailSendScope,
	gmail.GmailComposeScope,
	gmail.GmailLabelsScope,
}
