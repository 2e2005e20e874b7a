package gmail

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/mcp-gmail/internal/logging"
)

const (
	// MaxAttachmentSize defines the maximum attachment size in bytes (25MB)
	MaxAttachmentSize = 25 * 1024 * 1024

	unnamedAttachment = "unnamed"
)

// AttachmentInfo represents an attachment's metadata
type AttachmentInfo struct {
	MessageID    string
	PartID       string
	AttachmentID string
	Filename     string
	MimeType     string
	Size         int64
}

// ListAttachments collects every part of msg that carries a filename or an
// attachment id, depth-first. Parts without a filename are named "unnamed".
func ListAttachments(msg *gmail.Message) []AttachmentInfo {
	if msg == nil || msg.Payload == nil {
		return nil
	}

	var attachments []AttachmentInfo
	walkParts(msg.Payload, func(part *gmail.MessagePart) {
		var attachmentID string
		var size int64
		if part.Body != nil {
			attachmentID = part.Body.AttachmentId
			size = part.Body.Size
		}
		if attachmentID == "" && part.Filename == "" {
			return
		}
		name := part.Filename
		if name == "" {
			name = unnamedAttachment
		}
		mimeType := part.MimeType
		if mimeType == "" {
			mimeType = defaultAttachmentType
		}
		attachments = append(attachments, AttachmentInfo{
			MessageID:    msg.Id,
			PartID:       part.PartId,
			AttachmentID: attachmentID,
			Filename:     name,
			MimeType:     mimeType,
			Size:         size,
		})
	})
	return attachments
}

// ListMessageAttachments fetches a message and lists its attachments.
func (c *Client) ListMessageAttachments(ctx context.Context, messageID string) ([]AttachmentInfo, error) {
	msg, err := c.GetMessage(ctx, messageID, FormatFull)
	if err != nil {
		return nil, err
	}
	return ListAttachments(msg), nil
}

// GetAttachmentData retrieves the decoded content of an attachment
func (c *Client) GetAttachmentData(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}
	if attachmentID == "" {
		return nil, fmt.Errorf("attachmentID is required")
	}

	body, err := Do(ctx, c.inv, "attachments.get", func(ctx context.Context) (*gmail.MessagePartBody, error) {
		return c.svc.Messages.Attachments.Get(c.userID, messageID, attachmentID).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	if body.Size > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment size %d exceeds maximum size %d", body.Size, MaxAttachmentSize)
	}
	if body.Data == "" {
		return []byte{}, nil
	}

	data, err := decodeBase64URL(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment data: %w", err)
	}
	return data, nil
}

// DownloadAttachments saves every attachment of messageID, or of every
// message in its thread when allInThread is set, into dir. Existing files are
// never overwritten: a clash on name.ext is saved as name_1.ext, name_2.ext
// and so on. It returns the written paths in order.
func (c *Client) DownloadAttachments(ctx context.Context, messageID, dir string, allInThread bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	messageIDs := []string{messageID}
	if allInThread {
		msg, err := c.GetMessage(ctx, messageID, FormatMinimal)
		if err != nil {
			return nil, err
		}
		thread, err := c.GetThread(ctx, msg.ThreadId)
		if err != nil {
			return nil, err
		}
		messageIDs = messageIDs[:0]
		for _, m := range thread.Messages {
			messageIDs = append(messageIDs, m.Id)
		}
	}

	var saved []string
	for _, mid := range messageIDs {
		attachments, err := c.ListMessageAttachments(ctx, mid)
		if err != nil {
			return saved, err
		}
		for _, att := range attachments {
			if att.AttachmentID == "" {
				continue
			}
			data, err := c.GetAttachmentData(ctx, mid, att.AttachmentID)
			if err != nil {
				return saved, err
			}
			path, err := writeUnique(dir, SanitizeFilename(att.Filename), data)
			if err != nil {
				return saved, err
			}
			c.logger.Debug("saved attachment", logging.MessageID(mid), "path", path)
			saved = append(saved, path)
		}
	}
	return saved, nil
}

// writeUnique writes data to dir/name, choosing name_N.ext when the name is taken.
func writeUnique(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	path := filepath.Join(dir, name)
	for n := 1; ; n++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, ext))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", path, err)
		}
		return path, nil
	}
}

// SanitizeFilename sanitizes a filename to prevent path traversal attacks
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	if filename == "" {
		return unnamedAttachment
	}
	return filename
}
