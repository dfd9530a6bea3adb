package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gonfva/docxlib"
	"github.com/xuri/excelize/v2"
)

const maxSheetRows = 100

// DocumentArgs are the arguments of analyze_document.
type DocumentArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Path to the document file (.docx or .xlsx)."`
}

// AnalyzeDocumentTool returns the analyze_document tool.
func AnalyzeDocumentTool() Tool {
	return NewTool("analyze_document", "Extract content from DOCX or XLSX files.", AnalyzeDocument)
}

// AnalyzeDocument extracts text from a .docx or .xlsx file.
func AnalyzeDocument(_ context.Context, args DocumentArgs) string {
	var (
		out string
		err error
	)
	switch {
	case strings.HasSuffix(args.FilePath, ".docx"):
		out, err = analyzeDocx(args.FilePath)
	case strings.HasSuffix(args.FilePath, ".xlsx"):
		out, err = analyzeXlsx(args.FilePath)
	default:
		return "Unsupported file type: " + args.FilePath
	}
	if err != nil {
		return fmt.Sprintf("Error analyzing document: %v", err)
	}
	return out
}

func analyzeDocx(path string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed document: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	doc, err := docxlib.Parse(f, info.Size())
	if err != nil {
		return "", err
	}

	var paragraphs []string
	for _, para := range doc.Paragraphs() {
		if para == nil {
			continue
		}
		var b strings.Builder
		for _, child := range para.Children() {
			if child.Run != nil && child.Run.Text != nil {
				b.WriteString(child.Run.Text.Text)
			}
			if child.Link != nil && child.Link.Run.Text != nil {
				b.WriteString(child.Link.Run.Text.Text)
			}
		}
		if text := b.String(); strings.TrimSpace(text) != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func analyzeXlsx(path string) (string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer wb.Close()

	var results []string
	for _, sheet := range wb.GetSheetList() {
		results = append(results, fmt.Sprintf("## Sheet: %s\n", sheet))

		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet, err)
		}
		var kept []string
		for _, row := range rows {
			line := strings.Join(row, " | ")
			if strings.Trim(line, " |") != "" {
				kept = append(kept, line)
			}
		}
		results = append(results, strings.Join(kept[:min(len(kept), maxSheetRows)], "\n"))
		if len(kept) > maxSheetRows {
			results = append(results, fmt.Sprintf("\n[Truncated: showing %d of %d rows]", maxSheetRows, len(kept)))
		}
	}
	return strings.Join(results, "\n\n"), nil
}
