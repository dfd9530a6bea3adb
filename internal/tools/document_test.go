package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gonfva/docxlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAnalyzeDocumentUnsupported(t *testing.T) {
	out := AnalyzeDocument(context.Background(), DocumentArgs{FilePath: "notes.txt"})
	assert.Equal(t, "Unsupported file type: notes.txt", out)
}

func TestAnalyzeDocumentMissingFile(t *testing.T) {
	out := AnalyzeDocument(context.Background(), DocumentArgs{FilePath: filepath.Join(t.TempDir(), "missing.xlsx")})
	assert.True(t, strings.HasPrefix(out, "Error analyzing document: "), out)
}

func TestAnalyzeDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	w := docxlib.New()
	w.AddParagraph().AddText("Executive summary")
	w.AddParagraph()
	w.AddParagraph().AddText("Findings")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(f))
	require.NoError(t, f.Close())

	out := AnalyzeDocument(context.Background(), DocumentArgs{FilePath: path})
	assert.Equal(t, "Executive summary\n\nFindings", out)
}

func TestAnalyzeXlsx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]any{"name", "value"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]any{"alpha", 1}))
	_, err := wb.NewSheet("Data")
	require.NoError(t, err)
	for i := 1; i <= 105; i++ {
		require.NoError(t, wb.SetCellValue("Data", fmt.Sprintf("A%d", i), fmt.Sprintf("row-%d", i)))
	}
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	out := AnalyzeDocument(context.Background(), DocumentArgs{FilePath: path})

	assert.True(t, strings.HasPrefix(out, "## Sheet: Sheet1\n\n\nname | value\nalpha | 1\n\n## Sheet: Data\n"), out)
	assert.Contains(t, out, "row-100")
	assert.NotContains(t, out, "row-101")
	assert.True(t, strings.HasSuffix(out, "\n\n\n[Truncated: showing 100 of 105 rows]"), out)
}
