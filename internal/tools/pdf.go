package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFArgs are the arguments of analyze_pdf.
type PDFArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Path to the PDF file."`
	MaxPages int    `json:"max_pages,omitempty" jsonschema:"description=Maximum number of pages to process (default 50).,default=50"`
}

// AnalyzePDFTool returns the analyze_pdf tool.
func AnalyzePDFTool() Tool {
	return NewTool("analyze_pdf", "Extract text content from a PDF file.", AnalyzePDF)
}

// AnalyzePDF extracts the text of up to args.MaxPages pages.
func AnalyzePDF(_ context.Context, args PDFArgs) string {
	if args.MaxPages <= 0 {
		args.MaxPages = 50
	}
	pages, total, err := readPDFPages(args.FilePath, args.MaxPages)
	if err != nil {
		return fmt.Sprintf("Error analyzing PDF: %v", err)
	}
	return formatPDFPages(pages, total, args.MaxPages)
}

func readPDFPages(path string, maxPages int) (pages []string, total int, err error) {
	// The reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	total = r.NumPage()
	limit := min(total, maxPages)
	pages = make([]string, 0, limit)
	for i := 1; i <= limit; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, total, nil
}

// formatPDFPages renders extracted page texts; pages[i] is page i+1.
func formatPDFPages(pages []string, total, maxPages int) string {
	var parts []string
	for i, text := range pages {
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", i+1, text))
		}
	}
	if len(parts) == 0 {
		return "No text content found in PDF."
	}
	result := strings.Join(parts, "\n\n")
	if total > maxPages {
		result += fmt.Sprintf("\n\n[Truncated: showing %d of %d pages]", maxPages, total)
	}
	return result
}
