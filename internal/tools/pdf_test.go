package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPDFPages(t *testing.T) {
	out := formatPDFPages([]string{"Intro", "  ", "Methods"}, 3, 50)
	assert.Equal(t, "--- Page 1 ---\nIntro\n\n--- Page 3 ---\nMethods", out)
}

func TestFormatPDFPagesTruncated(t *testing.T) {
	out := formatPDFPages([]string{"one", "two"}, 7, 2)
	assert.True(t, strings.HasSuffix(out, "\n\n[Truncated: showing 2 of 7 pages]"), out)
}

func TestFormatPDFPagesEmpty(t *testing.T) {
	assert.Equal(t, "No text content found in PDF.", formatPDFPages([]string{"", "\n"}, 2, 50))
	assert.Equal(t, "No text content found in PDF.", formatPDFPages(nil, 0, 50))
}

func TestAnalyzePDFMissingFile(t *testing.T) {
	out := AnalyzePDF(context.Background(), PDFArgs{FilePath: filepath.Join(t.TempDir(), "missing.pdf")})
	assert.True(t, strings.HasPrefix(out, "Error analyzing PDF: "), out)
}

func TestAnalyzePDFNotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(path, []byte("plain text, not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := AnalyzePDF(context.Background(), PDFArgs{FilePath: path})
	assert.True(t, strings.HasPrefix(out, "Error analyzing PDF: "), out)
}
