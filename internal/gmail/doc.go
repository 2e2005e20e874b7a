// Package gmail wraps the Gmail API for a single authorized account.
//
// A Client exposes the mailbox operations the tools and the CLI need:
//   - Message search, retrieval, label changes and trash handling
//   - Composition of plain, HTML and attachment-bearing messages
//   - Replies and reply-all within the original thread
//   - Drafts, labels, threads and history
//   - Attachment listing and collision-safe downloads
//
// Every API call goes through an Invoker, which retries transient failures
// (HTTP 429 and 5xx) with exponential backoff and can be configured with a
// rate limit and a circuit breaker. Errors that survive the retries are
// reported as TransientServiceError or PermanentServiceError, both of which
// unwrap to the underlying *googleapi.Error.
//
// Search queries are built from SearchCriteria, and outgoing mail is
// assembled by OutgoingMessage using go-message.
//
// Example usage:
//
//	svc, err := gmail.NewService(ctx, tokenSource)
//	if err != nil {
//	    return err
//	}
//	client := gmail.NewClient(svc, gmail.WithAccount("work"))
//
//	refs, _, err := client.SearchMessages(ctx, gmail.SearchCriteria{IsUnread: true}, 10, "")
//	if err != nil {
//	    return err
//	}
//
//	_, err = client.SendEmail(ctx, gmail.OutgoingMessage{
//	    To:      "recipient@example.com",
//	    Subject: "Hello",
//	    Body:    "This is a test email",
//	})
package gmail
