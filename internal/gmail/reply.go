package gmail

import (
	"strings"

	"github.com/emersion/go-message/mail"
	gmail "google.golang.org/api/gmail/v1"
)

const replyPrefix = "Re:"

// ReplyOptions controls how a reply to an existing message is built.
type ReplyOptions struct {
	// Sender is the authenticated user's address.
	Sender   string
	Body     string
	HTMLBody string
	// ReplyAll copies the original To and Cc recipients into Cc.
	ReplyAll bool
	// To overrides the recipient. Defaults to Reply-To, then From.
	To          string
	Cc          string
	Bcc         string
	Attachments []string
}

// PrepareReply builds a reply to original and returns it together with the
// thread id the reply must be attached to.
func PrepareReply(original *gmail.Message, opts ReplyOptions) (OutgoingMessage, string) {
	headers := HeadersMap(original)

	subject := headers["Subject"]
	if !strings.HasPrefix(subject, replyPrefix) {
		subject = replyPrefix + " " + subject
	}

	to := opts.To
	if to == "" {
		to = headerOr(headers, "Reply-To", headers["From"])
	}

	cc := opts.Cc
	if opts.ReplyAll {
		cc = ReplyAllCc(headers["To"], headers["Cc"], opts.Sender, to, opts.Cc)
	}

	msg := OutgoingMessage{
		From:        opts.Sender,
		To:          to,
		Cc:          cc,
		Bcc:         opts.Bcc,
		Subject:     subject,
		Body:        opts.Body,
		HTMLBody:    opts.HTMLBody,
		Attachments: opts.Attachments,
	}
	if id := HeaderValue(original, "Message-ID"); id != "" {
		msg.InReplyTo = id
		msg.References = id
	}

	var threadID string
	if original != nil {
		threadID = original.ThreadId
	}
	return msg, threadID
}

// ReplyAllCc computes the Cc list of a reply-all: the original To and Cc
// recipients minus the sender and the reply's primary recipient, merged
// after any explicit Cc entries without duplicates. Addresses are compared
// case-insensitively, ignoring display names.
func ReplyAllCc(originalTo, originalCc, sender, to, explicitCc string) string {
	exclude := map[string]bool{
		BareAddress(sender): true,
		BareAddress(to):     true,
	}

	var candidates []string
	for _, addr := range append(addressEntries(originalTo), addressEntries(originalCc)...) {
		if !exclude[BareAddress(addr)] {
			candidates = append(candidates, addr)
		}
	}

	merged := addressEntries(explicitCc)
	seen := make(map[string]bool, len(merged))
	for _, addr := range merged {
		seen[BareAddress(addr)] = true
	}
	for _, addr := range candidates {
		bare := BareAddress(addr)
		if seen[bare] {
			continue
		}
		seen[bare] = true
		merged = append(merged, addr)
	}
	return strings.Join(merged, ", ")
}

// addressEntries splits an address list header into its entries, keeping
// display names that contain commas intact when the list parses.
func addressEntries(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	addrs, err := mail.ParseAddressList(value)
	if err != nil {
		return SplitAddresses(value)
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}
