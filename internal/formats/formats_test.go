// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"report.pdf", true},
		{"REPORT.PDF", true},
		{"deck.PpTx", true},
		{"dir/sub/scan.tiff", true},
		{"audio.flac", true},
		{"notes.htm", true},
		{"archive.zip", false},
		{"binary", false},
		{"script.py", false},
		{".pdf.bak", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Supported(tt.path))
		})
	}
}

func TestList(t *testing.T) {
	got := List()
	assert.Len(t, got, 23)
	assert.IsIncreasing(t, got)
	assert.Contains(t, got, "docx")
	assert.NotContains(t, got, ".docx")
}

func TestWithExtra(t *testing.T) {
	f := WithExtra([]string{"epub", ".RTF", "  "})
	assert.True(t, f("book.epub"))
	assert.True(t, f("letter.rtf"))
	assert.True(t, f("paper.pdf"))
	assert.False(t, f("image.webp"))
}
