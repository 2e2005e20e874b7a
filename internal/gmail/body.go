package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	gmail "google.golang.org/api/gmail/v1"
)

// Header defaults used when rendering a message.
const (
	UnknownValue  = "Unknown"
	NoSubject     = "No Subject"
	UnknownDate   = "Unknown Date"
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// HeadersMap returns the message headers by name. A later header with the
// same name replaces an earlier one. Messages fetched without a payload yield
// an empty map.
func HeadersMap(msg *gmail.Message) map[string]string {
	headers := map[string]string{}
	if msg == nil || msg.Payload == nil {
		return headers
	}
	for _, h := range msg.Payload.Headers {
		headers[h.Name] = h.Value
	}
	return headers
}

// HeaderValue returns the first header named name, compared case-insensitively.
func HeaderValue(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// headerOr returns headers[name] or def when the header is absent.
func headerOr(headers map[string]string, name, def string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	return def
}

// ParseMessageBody concatenates the text of every text/plain leaf in a
// depth-first walk of the payload. When the message has no plain text but has
// HTML leaves, the HTML is converted to Markdown instead.
func ParseMessageBody(msg *gmail.Message) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	p := msg.Payload

	if len(p.Parts) == 0 {
		text := decodePartData(p)
		if p.MimeType == mimeTextHTML && text != "" {
			return htmlToText(text)
		}
		return text
	}

	var plain, html strings.Builder
	walkParts(p, func(part *gmail.MessagePart) {
		if len(part.Parts) > 0 {
			return
		}
		switch part.MimeType {
		case mimeTextPlain:
			plain.WriteString(decodePartData(part))
		case mimeTextHTML:
			html.WriteString(decodePartData(part))
		}
	})

	if plain.Len() > 0 || html.Len() == 0 {
		return plain.String()
	}
	return htmlToText(html.String())
}

func htmlToText(html string) string {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return html
	}
	return strings.TrimSpace(md)
}

func decodePartData(part *gmail.MessagePart) string {
	if part == nil || part.Body == nil || part.Body.Data == "" {
		return ""
	}
	data, err := decodeBase64URL(part.Body.Data)
	if err != nil {
		return ""
	}
	return string(data)
}

// decodeBase64URL decodes Gmail's base64url data, padded or not.
func decodeBase64URL(s string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	if data, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 data: %w", err)
	}
	return data, nil
}

// walkParts visits part and its descendants depth-first.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, sub := range part.Parts {
		walkParts(sub, fn)
	}
}

// FormatMessage renders the From, To, Subject and Date headers followed by
// the decoded body.
func FormatMessage(msg *gmail.Message) string {
	headers := HeadersMap(msg)
	return fmt.Sprintf("\nFrom: %s\nTo: %s\nSubject: %s\nDate: %s\n\n%s\n",
		headerOr(headers, "From", UnknownValue),
		headerOr(headers, "To", UnknownValue),
		headerOr(headers, "Subject", NoSubject),
		headerOr(headers, "Date", UnknownDate),
		ParseMessageBody(msg),
	)
}

// Summary is the header summary of a listed message.
type Summary struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Date     string
}

// Summarize extracts the list view fields of msg.
func Summarize(msg *gmail.Message) Summary {
	headers := HeadersMap(msg)
	return Summary{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		From:     headerOr(headers, "From", UnknownValue),
		Subject:  headerOr(headers, "Subject", NoSubject),
		Date:     headerOr(headers, "Date", UnknownDate),
	}
}
