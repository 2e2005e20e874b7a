package gmail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message/mail"
)

const defaultAttachmentType = "application/octet-stream"

// OutgoingMessage is a message to be sent or saved as a draft.
// Address fields hold comma-separated address lists.
type OutgoingMessage struct {
	From     string
	To       string
	Cc       string
	Bcc      string
	Subject  string
	Body     string
	HTMLBody string
	// Attachments are local file paths.
	Attachments []string
	InReplyTo   string
	References  string
}

// Build renders the message as RFC 5322 bytes. A plain body yields a single
// text/plain part, an HTML body a multipart/alternative, and attachments a
// multipart/mixed wrapping the body part(s) and one part per file.
func (m OutgoingMessage) Build() ([]byte, error) {
	var h mail.Header
	if err := setAddresses(&h, "From", m.From); err != nil {
		return nil, err
	}
	if err := setAddresses(&h, "To", m.To); err != nil {
		return nil, err
	}
	if err := setAddresses(&h, "Cc", m.Cc); err != nil {
		return nil, err
	}
	if err := setAddresses(&h, "Bcc", m.Bcc); err != nil {
		return nil, err
	}
	h.SetSubject(m.Subject)
	if m.InReplyTo != "" {
		h.Set("In-Reply-To", m.InReplyTo)
	}
	if m.References != "" {
		h.Set("References", m.References)
	}

	var buf bytes.Buffer
	var err error
	switch {
	case len(m.Attachments) > 0:
		err = m.writeMixed(&buf, h)
	case m.HTMLBody != "":
		err = m.writeAlternative(&buf, h)
	default:
		err = m.writeSingle(&buf, h)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Raw returns the message encoded for the Gmail API raw field.
func (m OutgoingMessage) Raw() (string, error) {
	data, err := m.Build()
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

func (m OutgoingMessage) writeSingle(w io.Writer, h mail.Header) error {
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	pw, err := mail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	if _, err := io.WriteString(pw, m.Body); err != nil {
		return fmt.Errorf("failed to write message body: %w", err)
	}
	return pw.Close()
}

func (m OutgoingMessage) writeAlternative(w io.Writer, h mail.Header) error {
	iw, err := mail.CreateInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	if err := writeBodyParts(iw, m.Body, m.HTMLBody); err != nil {
		return err
	}
	return iw.Close()
}

func (m OutgoingMessage) writeMixed(w io.Writer, h mail.Header) error {
	// Read every file first so a missing path fails before anything is written.
	files := make([]attachmentFile, 0, len(m.Attachments))
	for _, path := range m.Attachments {
		f, err := readAttachment(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	if m.HTMLBody != "" {
		iw, err := mw.CreateInline()
		if err != nil {
			return fmt.Errorf("failed to create body part: %w", err)
		}
		if err := writeBodyParts(iw, m.Body, m.HTMLBody); err != nil {
			return err
		}
		if err := iw.Close(); err != nil {
			return err
		}
	} else {
		var ih mail.InlineHeader
		ih.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		pw, err := mw.CreateSingleInline(ih)
		if err != nil {
			return fmt.Errorf("failed to create body part: %w", err)
		}
		if _, err := io.WriteString(pw, m.Body); err != nil {
			return fmt.Errorf("failed to write message body: %w", err)
		}
		if err := pw.Close(); err != nil {
			return err
		}
	}

	for _, f := range files {
		var ah mail.AttachmentHeader
		ah.SetContentType(f.contentType, nil)
		ah.SetFilename(f.name)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return fmt.Errorf("failed to create attachment part %s: %w", f.name, err)
		}
		if _, err := aw.Write(f.data); err != nil {
			return fmt.Errorf("failed to write attachment %s: %w", f.name, err)
		}
		if err := aw.Close(); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeBodyParts(iw *mail.InlineWriter, text, html string) error {
	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain", text},
		{"text/html", html},
	}
	for _, p := range parts {
		var ih mail.InlineHeader
		ih.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
		pw, err := iw.CreatePart(ih)
		if err != nil {
			return fmt.Errorf("failed to create %s part: %w", p.contentType, err)
		}
		if _, err := io.WriteString(pw, p.content); err != nil {
			return fmt.Errorf("failed to write %s part: %w", p.contentType, err)
		}
		if err := pw.Close(); err != nil {
			return err
		}
	}
	return nil
}

type attachmentFile struct {
	name        string
	contentType string
	data        []byte
}

func readAttachment(path string) (attachmentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return attachmentFile{}, fmt.Errorf("%w: %s", ErrAttachmentNotFound, path)
		}
		return attachmentFile{}, fmt.Errorf("failed to read attachment %s: %w", path, err)
	}
	return attachmentFile{
		name:        filepath.Base(path),
		contentType: ContentTypeForFile(path),
		data:        data,
	}, nil
}

// ContentTypeForFile infers a MIME type from the file extension, defaulting
// to application/octet-stream.
func ContentTypeForFile(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if t == "" {
		return defaultAttachmentType
	}
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}

func setAddresses(h *mail.Header, key, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	addrs, err := mail.ParseAddressList(value)
	if err != nil {
		return fmt.Errorf("invalid %s address list %q: %w", key, value, err)
	}
	h.SetAddressList(key, addrs)
	return nil
}

// SplitAddresses splits a comma-separated address list into trimmed entries.
func SplitAddresses(value string) []string {
	var out []string
	for _, a := range strings.Split(value, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// BareAddress returns the lowercase address of "Name <addr>" or "addr".
func BareAddress(address string) string {
	if a, err := mail.ParseAddress(address); err == nil {
		return strings.ToLower(a.Address)
	}
	address = strings.TrimSpace(address)
	if i := strings.Index(address, "<"); i >= 0 {
		if j := strings.Index(address[i:], ">"); j > 0 {
			return strings.ToLower(address[i+1 : i+j])
		}
	}
	return strings.ToLower(address)
}
