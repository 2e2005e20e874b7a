package gmail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{
			name:     "normal filename",
			filename: "document.pdf",
			want:     "document.pdf",
		},
		{
			name:     "filename with forward slash",
			filename: "path/to/document.pdf",
			want:     "path_to_document.pdf",
		},
		{
			name:     "filename with backslash",
			filename: "path\\to\\document.pdf",
			want:     "path_to_document.pdf",
		},
		{
			name:     "filename with parent directory",
			filename: "../../../etc/passwd",
			want:     "______etc_passwd",
		},
		{
			name:     "filename with mixed separators",
			filename: "../path\\to/document.pdf",
			want:     "__path_to_document.pdf",
		},
		{
			name:     "empty filename",
			filename: "",
			want:     "unnamed",
		},
		{
			name:     "dot only",
			filename: "..",
			want:     "_",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.filename))
		})
	}
}

func TestWalkParts(t *testing.T) {
	tests := []struct {
		name          string
		part          *gmail.MessagePart
		expectedParts int
	}{
		{
			name: "single part",
			part: &gmail.MessagePart{
				PartId:   "0",
				MimeType: "text/plain",
			},
			expectedParts: 1,
		},
		{
			name: "nested parts",
			part: &gmail.MessagePart{
				PartId:   "0",
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{PartId: "0.0", MimeType: "text/plain"},
					{PartId: "0.1", MimeType: "text/html"},
				},
			},
			expectedParts: 3, // parent + 2 children
		},
		{
			name: "deeply nested parts",
			part: &gmail.MessagePart{
				PartId:   "0",
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						PartId:   "0.0",
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{PartId: "0.0.0", MimeType: "text/plain"},
							{PartId: "0.0.1", MimeType: "text/html"},
						},
					},
					{PartId: "0.1", MimeType: "application/pdf"},
				},
			},
			expectedParts: 5,
		},
		{
			name:          "nil part",
			part:          nil,
			expectedParts: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ids []string
			walkParts(tt.part, func(part *gmail.MessagePart) {
				ids = append(ids, part.PartId)
			})
			assert.Len(t, ids, tt.expectedParts)
		})
	}
}

func TestWriteUniqueNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("existing"), 0o600))

	first, err := writeUnique(dir, "report.pdf", []byte("one"))
	require.NoError(t, err)
	second, err := writeUnique(dir, "report.pdf", []byte("two"))
	require.NoError(t, err)
	noExt, err := writeUnique(dir, "README", []byte("x"))
	require.NoError(t, err)
	noExt2, err := writeUnique(dir, "README", []byte("y"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "report_1.pdf"), first)
	assert.Equal(t, filepath.Join(dir, "report_2.pdf"), second)
	assert.Equal(t, filepath.Join(dir, "README"), noExt)
	assert.Equal(t, filepath.Join(dir, "README_1"), noExt2)

	existing, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(existing))

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}
